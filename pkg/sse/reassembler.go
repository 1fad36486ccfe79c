package sse

import (
	"bytes"
	"strings"
)

var (
	frameDelimiter = []byte("\n\n")
	crlf           = []byte("\r\n")
	lf             = []byte("\n")
)

// Reassembler turns raw chunks of an SSE byte stream into complete frames.
//
// Buffering happens on raw bytes: a frame is only decoded to text once its
// terminating blank line has arrived, so a multi-byte UTF-8 sequence split
// across two chunks is carried over intact rather than decoded in halves.
//
// A Reassembler is single-writer: Feed and Finish must not be called
// concurrently.
type Reassembler struct {
	buf []byte

	// scanned is how far into buf the delimiter search has already looked.
	scanned int

	// pendingCR holds a trailing '\r' from the previous chunk that may be
	// the first half of a "\r\n" pair.
	pendingCR bool
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends the next raw chunk and returns every frame completed by it,
// in the order their terminating delimiter appeared. A chunk may contain
// zero, one or many frames, and may split a frame anywhere.
func (r *Reassembler) Feed(chunk []byte) []Frame {
	r.append(chunk)

	var frames []Frame
	for {
		idx := bytes.Index(r.buf[r.scanned:], frameDelimiter)
		if idx < 0 {
			// Back off one byte so a delimiter split across chunks is found.
			r.scanned = max(len(r.buf)-len(frameDelimiter)+1, 0)
			break
		}
		idx += r.scanned

		raw := r.buf[:idx]
		r.buf = r.buf[idx+len(frameDelimiter):]
		r.scanned = 0

		if f, ok := parseFrame(raw); ok {
			frames = append(frames, f)
		}
	}

	// Reclaim the consumed prefix once the buffer drains.
	if len(r.buf) == 0 {
		r.buf = nil
	}

	return frames
}

// Finish is called once at end of stream. It salvages a final frame if the
// stream ended without a trailing delimiter but the leftover bytes still hold
// data lines; anything else is discarded. The Reassembler is reset and may be
// reused for a new stream.
func (r *Reassembler) Finish() []Frame {
	raw := r.buf
	r.buf = nil
	r.scanned = 0
	r.pendingCR = false

	f, ok := parseFrame(raw)
	if !ok {
		return nil
	}

	return []Frame{f}
}

// Buffered reports the number of bytes held for an unterminated frame.
func (r *Reassembler) Buffered() int {
	n := len(r.buf)
	if r.pendingCR {
		n++
	}
	return n
}

// append normalises "\r\n" to "\n" and adds chunk to the buffer. A trailing
// '\r' is held back until the next chunk shows whether it starts a pair.
func (r *Reassembler) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	data := chunk
	if r.pendingCR {
		data = make([]byte, 0, len(chunk)+1)
		data = append(data, '\r')
		data = append(data, chunk...)
		r.pendingCR = false
	}

	if data[len(data)-1] == '\r' {
		r.pendingCR = true
		data = data[:len(data)-1]
	}

	r.buf = append(r.buf, bytes.ReplaceAll(data, crlf, lf)...)
}

// parseFrame decodes the lines of one frame. It reports false when the frame
// carries no fields at all (blank lines, keep-alive comments).
func parseFrame(raw []byte) (Frame, bool) {
	if len(raw) == 0 {
		return Frame{}, false
	}

	text := strings.ToValidUTF8(string(raw), "�")

	var (
		f       Frame
		data    []string
		hasData bool
	)

	for line := range strings.SplitSeq(text, "\n") {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			f.Type = value
		case "id":
			f.ID = value
		default:
			// "retry" and unknown fields are ignored per the SSE standard.
		}
	}

	if !hasData {
		return Frame{}, false
	}

	f.Data = strings.Join(data, "\n")
	return f, true
}

// parseLine splits a single non-empty, non-comment SSE line.
//
// Per the SSE standard, a line has the form "field:value" where the first
// space after the colon is optional and stripped if present. A line with
// no colon is a field name with an empty value.
func parseLine(line string) (string, string) {
	field, value, ok := strings.Cut(line, ":")
	if !ok {
		return line, ""
	}

	return field, strings.TrimPrefix(value, " ")
}
