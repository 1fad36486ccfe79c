package progress

import (
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/sse"
)

// Stream turns raw chunks of an analysis response body into Events.
// Frames whose payload does not decode are dropped and counted; they never
// surface as errors. Like the underlying Reassembler it is single-writer.
type Stream struct {
	r       *sse.Reassembler
	logger  *zap.Logger
	dropped int
}

// NewStream returns an empty Stream. A nil logger discards output.
func NewStream(logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		r:      sse.NewReassembler(),
		logger: logger,
	}
}

// Feed consumes the next chunk and returns the events it completed.
func (s *Stream) Feed(chunk []byte) []Event {
	return s.decode(s.r.Feed(chunk))
}

// Finish flushes the stream at EOF, salvaging a final unterminated frame.
func (s *Stream) Finish() []Event {
	return s.decode(s.r.Finish())
}

// Frames decodes frames obtained elsewhere, for example from an sse.Reader.
func (s *Stream) Frames(frames ...sse.Frame) []Event {
	return s.decode(frames)
}

// Dropped reports how many frames failed to decode.
func (s *Stream) Dropped() int {
	return s.dropped
}

func (s *Stream) decode(frames []sse.Frame) []Event {
	if len(frames) == 0 {
		return nil
	}

	events := make([]Event, 0, len(frames))
	for _, f := range frames {
		ev, err := DecodeFrame(f)
		if err != nil {
			s.dropped++
			s.logger.Warn("dropping malformed progress frame",
				zap.String("type", f.Type),
				zap.Int("bytes", len(f.Data)),
				zap.Error(err),
			)
			continue
		}

		s.logger.Debug("progress event", zap.String("event", string(ev.Kind())))
		events = append(events, ev)
	}
	return events
}
