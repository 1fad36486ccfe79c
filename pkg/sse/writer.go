package sse

import (
	"io"
	"strings"
)

// Write encodes f in SSE wire format to w. Multi-line data is split across
// consecutive "data:" lines so that a reader rejoins it with "\n".
func Write(w io.Writer, f Frame) error {
	var b strings.Builder

	if f.Type != "" {
		b.WriteString("event: ")
		b.WriteString(f.Type)
		b.WriteString("\n")
	}

	if f.ID != "" {
		b.WriteString("id: ")
		b.WriteString(f.ID)
		b.WriteString("\n")
	}

	for line := range strings.SplitSeq(f.Data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteString("\n")
	}

	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteComment writes an SSE comment line, typically used as a keep-alive.
func WriteComment(w io.Writer, text string) error {
	_, err := io.WriteString(w, ": "+text+"\n\n")
	return err
}
