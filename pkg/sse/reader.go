package sse

import (
	"errors"
	"io"
)

const defaultReadSize = 32 * 1024

// Reader pulls frames from a source io.Reader, driving a Reassembler with
// whatever chunk sizes the source hands back.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │ raw chunks
// ▼
// ┌──────────────────┐
// │   Reassembler    │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  Reader.Next()   │──▶ Frame
// └──────────────────┘
type Reader struct {
	src     io.Reader
	r       *Reassembler
	buf     []byte
	pending []Frame

	// err is the terminal read error, reported once pending frames drain.
	err  error
	done bool
}

// NewReader returns a Reader that parses SSE frames from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src: src,
		r:   NewReassembler(),
		buf: make([]byte, defaultReadSize),
	}
}

// Next returns the next frame from the source. It blocks until a complete
// frame is available (terminated by a blank line in the stream).
// Next returns nil, nil when the source is exhausted; a final unterminated
// frame is still yielded if it holds data.
//
// A read error other than io.EOF is returned once every frame completed
// before it has been delivered. Bytes of a partial frame buffered at that
// point are discarded.
func (r *Reader) Next() (*Frame, error) {
	for len(r.pending) == 0 {
		if r.done {
			err := r.err
			r.err = nil
			return nil, err
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.r.Feed(r.buf[:n])...)
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			r.done = true
			r.pending = append(r.pending, r.r.Finish()...)
		default:
			r.done = true
			r.err = err
			r.r.Finish()
		}
	}

	f := r.pending[0]
	r.pending = r.pending[1:]
	return &f, nil
}
