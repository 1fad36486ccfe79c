package analysis

import (
	"errors"
	"fmt"
)

// TransportError reports that the analysis service could not be reached,
// answered with a non-success status, or sent an unreadable response.
type TransportError struct {
	// Op is the failed operation: "analyze", "stream" or "health".
	Op string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Body is a prefix of the error response body, if any.
	Body string

	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("analysis %s: upstream returned %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("analysis %s: upstream returned %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("analysis %s: %v", e.Op, e.Err)
	default:
		return "analysis " + e.Op + ": transport failure"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
