// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// frame reassembler. It reconstructs discrete frames from a byte stream
// delivered in arbitrary, transport-chosen chunks, and encodes frames for
// relaying to downstream clients.
//
// See the WHATWG server-sent events standard:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Frame represents a single parsed SSE record, delimited by a blank line
// in the upstream byte stream.
type Frame struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE standard.
	Type string

	// Data is the concatenated contents of all "data:" lines for this frame,
	// joined with "\n" (per the SSE standard, multiple data fields are joined
	// with a single newline).
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}
