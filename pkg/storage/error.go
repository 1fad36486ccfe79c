package storage

import (
	"errors"
	"fmt"
)

// ErrDuplicate is returned when a record with the same key already exists.
var ErrDuplicate = errors.New("record already exists")

// NotFoundError is returned when a record doesn't exist in the store.
type NotFoundError struct {
	// Kind is the record type, e.g. "brief".
	Kind string

	// ID is the requested key. It is empty for lookups without one, such as
	// the latest brief.
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}

	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
