package briefing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/analysis"
	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/eventstream"
	"github.com/papercomputeco/apm/pkg/progress"
	"github.com/papercomputeco/apm/pkg/sse"
)

// ErrIncomplete is returned by Relay.Run when the analysis stream ends
// without a complete event.
var ErrIncomplete = errors.New("analysis stream ended before completion")

// StreamRequest is the optional body of a streaming generation. Both fields
// are set to refine an existing brief, or both are empty.
type StreamRequest struct {
	BriefID  string `json:"brief_id,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// Refinement reports whether r asks to refine an existing brief.
func (r StreamRequest) Refinement() bool {
	return strings.TrimSpace(r.BriefID) != "" || strings.TrimSpace(r.Feedback) != ""
}

// OpenStream validates req, loads the users and opens the analysis stream.
// Errors are returned before anything is written so the caller can still
// answer with a status code. The returned Relay must be closed.
func (s *Service) OpenStream(ctx context.Context, req StreamRequest) (*Relay, error) {
	var parent *brief.Brief
	if req.Refinement() {
		p, err := s.parent(ctx, req.BriefID, req.Feedback)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	areq, err := s.request(ctx, parent)
	if err != nil {
		return nil, err
	}

	r := &Relay{svc: s, users: len(areq.Users)}
	if parent != nil {
		areq.Feedback = strings.TrimSpace(req.Feedback)
		r.parentID = parent.ID
		r.feedback = areq.Feedback
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	stream, err := s.analyzer.Open(r.ctx, areq)
	if err != nil {
		r.cancel()
		return nil, err
	}
	r.stream = stream

	s.logger.Debug("analysis stream relay opened",
		zap.Int("users", r.users),
		zap.String("parent_brief_id", r.parentID),
	)
	return r, nil
}

// Relay forwards one analysis stream to a client. Frames are written
// verbatim except the terminal complete event, which gains the persisted
// brief_id and created_at.
type Relay struct {
	svc      *Service
	stream   *analysis.EventStream
	ctx      context.Context
	cancel   context.CancelFunc
	users    int
	parentID string
	feedback string

	brief *brief.Brief
}

// Run relays frames to w until the complete event has been written or the
// stream fails. When the upstream fails or ends early an error frame is
// written before returning.
func (r *Relay) Run(w io.Writer) error {
	logger := r.svc.logger

	for {
		f, err := r.stream.Next()
		if err != nil {
			logger.Error("analysis stream failed", zap.Error(err))
			return r.fail(w, err)
		}
		if f == nil {
			logger.Warn("analysis stream ended before completion")
			return r.fail(w, ErrIncomplete)
		}

		ev, derr := progress.DecodeFrame(*f)
		if derr != nil {
			logger.Warn("forwarding undecodable analysis frame", zap.Error(derr))
		}

		complete, ok := ev.(progress.Complete)
		if !ok {
			if err := sse.Write(w, *f); err != nil {
				return fmt.Errorf("writing to client: %w", err)
			}
			continue
		}

		out, err := r.finish(*f, complete)
		if err != nil {
			logger.Error("persisting streamed brief failed", zap.Error(err))
			return r.fail(w, err)
		}
		if err := sse.Write(w, out); err != nil {
			return fmt.Errorf("writing to client: %w", err)
		}
		return nil
	}
}

// Brief returns the brief persisted by Run, or nil.
func (r *Relay) Brief() *brief.Brief {
	return r.brief
}

// Close releases the upstream stream.
func (r *Relay) Close() error {
	r.cancel()
	return r.stream.Close()
}

// finish persists the brief carried by the complete frame f and returns f
// with the brief identity stamped into its payload.
func (r *Relay) finish(f sse.Frame, ev progress.Complete) (sse.Frame, error) {
	result := brief.Result{
		Brief:           ev.Brief,
		ConfidenceScore: ev.ConfidenceScore,
		AgentOutputs:    ev.AgentOutputs,
		Timing:          ev.Timing,
	}

	b, err := r.svc.persist(r.ctx, result, r.feedback, r.parentID, eventstream.EventSource{Streaming: true, Users: r.users})
	if err != nil {
		return sse.Frame{}, err
	}
	r.brief = b

	data, err := stamp([]byte(f.Data), b)
	if err != nil {
		return sse.Frame{}, err
	}

	f.Data = string(data)
	if f.Type == "" {
		f.Type = string(progress.KindComplete)
	}
	return f, nil
}

// stamp sets brief_id and created_at on the JSON object data, keeping every
// other field as sent.
func stamp(data []byte, b *brief.Brief) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding complete event: %w", err)
	}

	id, err := json.Marshal(b.ID)
	if err != nil {
		return nil, err
	}
	created, err := json.Marshal(b.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	fields["brief_id"] = id
	fields["created_at"] = created

	return json.Marshal(fields)
}

// fail writes an in-band error event and returns cause.
func (r *Relay) fail(w io.Writer, cause error) error {
	f, err := progress.EncodeFrame(progress.Failure{Message: cause.Error()})
	if err != nil {
		return errors.Join(cause, err)
	}
	if err := sse.Write(w, f); err != nil {
		return errors.Join(cause, fmt.Errorf("writing error event: %w", err))
	}
	return cause
}
