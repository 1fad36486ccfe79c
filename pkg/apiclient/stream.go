package apiclient

import (
	"errors"
	"fmt"
	"io"

	"github.com/papercomputeco/apm/pkg/progress"
)

// ErrStreamFailed is returned by EventStream.Each when the server relayed an
// in-band error event.
var ErrStreamFailed = errors.New("brief generation failed")

// EventStream decodes a brief generation stream into progress events.
type EventStream struct {
	body    io.ReadCloser
	decoder *progress.Stream
}

// Each calls fn with every decoded event in arrival order until the stream
// ends. A relayed error event is passed to fn and then returned as
// ErrStreamFailed; a stream that ends without complete or error is io.ErrUnexpectedEOF.
func (s *EventStream) Each(fn func(progress.Event)) error {
	buf := make([]byte, 32*1024)
	var failure *progress.Failure
	complete := false

	emit := func(events []progress.Event) {
		for _, ev := range events {
			switch e := ev.(type) {
			case progress.Failure:
				failure = &e
			case progress.Complete:
				complete = true
			}
			fn(ev)
		}
	}

	for {
		n, err := s.body.Read(buf)
		if n > 0 {
			emit(s.decoder.Feed(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			emit(s.decoder.Finish())
			break
		}
		if err != nil {
			emit(s.decoder.Finish())
			return fmt.Errorf("reading stream: %w", err)
		}
	}

	switch {
	case failure != nil:
		return fmt.Errorf("%w: %s", ErrStreamFailed, failure.Message)
	case !complete:
		return io.ErrUnexpectedEOF
	}
	return nil
}

// Dropped reports how many frames could not be decoded.
func (s *EventStream) Dropped() int {
	return s.decoder.Dropped()
}

// Close releases the connection.
func (s *EventStream) Close() error {
	return s.body.Close()
}
