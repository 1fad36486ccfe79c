package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/apm/pkg/sse"
)

var (
	// ErrInvalidJSON is returned by Decode when the payload is not JSON.
	ErrInvalidJSON = errors.New("progress payload is not valid JSON")

	// ErrNotObject is returned by Decode when the payload is valid JSON but
	// not an object.
	ErrNotObject = errors.New("progress payload is not a JSON object")
)

type envelope struct {
	Event *Kind `json:"event"`
}

// Decode parses a single frame payload into an Event. A payload with an
// unrecognised or missing discriminant decodes to Unknown without error.
func Decode(data []byte) (Event, error) {
	return decode(data, "")
}

// DecodeFrame decodes f.Data, falling back to the frame's SSE event type
// when the payload itself has no "event" field.
func DecodeFrame(f sse.Frame) (Event, error) {
	return decode([]byte(f.Data), Kind(f.Type))
}

func decode(data []byte, fallback Kind) (Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return nil, ErrInvalidJSON
		}
		return nil, ErrNotObject
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding progress envelope: %w", err)
	}
	data = trimmed

	kind := fallback
	if env.Event != nil {
		kind = *env.Event
	}

	var (
		ev  Event
		err error
	)
	switch kind {
	case KindPhaseStart:
		ev, err = unmarshalAs[PhaseStart](data)
	case KindAgentStart:
		ev, err = unmarshalAs[AgentStart](data)
	case KindAgentComplete:
		ev, err = unmarshalAs[AgentComplete](data)
	case KindComposeComplete:
		ev, err = unmarshalAs[ComposeComplete](data)
	case KindComplete:
		ev, err = unmarshalAs[Complete](data)
	case KindFailure:
		ev, err = unmarshalAs[Failure](data)
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Unknown{Type: string(kind), Raw: raw}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", kind, err)
	}

	return ev, nil
}

func unmarshalAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode renders an Event as the JSON payload of one frame, with the
// discriminant in the "event" field. Unknown events are re-emitted verbatim.
func Encode(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case PhaseStart:
		return json.Marshal(struct {
			Event Kind `json:"event"`
			PhaseStart
		}{e.Kind(), e})
	case AgentStart:
		return json.Marshal(struct {
			Event Kind `json:"event"`
			AgentStart
		}{e.Kind(), e})
	case AgentComplete:
		return json.Marshal(struct {
			Event Kind `json:"event"`
			AgentComplete
		}{e.Kind(), e})
	case ComposeComplete:
		return json.Marshal(struct {
			Event Kind `json:"event"`
			ComposeComplete
		}{e.Kind(), e})
	case Complete:
		return json.Marshal(struct {
			Event Kind `json:"event"`
			Complete
		}{e.Kind(), e})
	case Failure:
		return json.Marshal(struct {
			Event Kind `json:"event"`
			Failure
		}{e.Kind(), e})
	case Unknown:
		if len(e.Raw) == 0 {
			return json.Marshal(map[string]string{"event": e.Type})
		}
		return e.Raw, nil
	default:
		return nil, fmt.Errorf("unsupported progress event %T", ev)
	}
}

// EncodeFrame wraps Encode in an SSE frame whose event type mirrors the
// discriminant.
func EncodeFrame(ev Event) (sse.Frame, error) {
	data, err := Encode(ev)
	if err != nil {
		return sse.Frame{}, err
	}
	return sse.Frame{Type: string(ev.Kind()), Data: string(data)}, nil
}
