// Package brief defines the meeting brief produced by the analysis service
// and persisted by the backend.
package brief

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyBrief is returned when an analysis result carries no brief object.
var ErrEmptyBrief = errors.New("analysis result has no brief")

// Brief is one generated meeting brief. Content and AgentOutputs are kept as
// the raw JSON produced by the analysis service.
type Brief struct {
	ID              string                     `json:"id"`
	Content         json.RawMessage            `json:"content"`
	Summary         string                     `json:"summary"`
	ConfidenceScore float64                    `json:"confidence_score"`
	AgentOutputs    map[string]json.RawMessage `json:"agent_outputs"`
	Feedback        string                     `json:"feedback,omitempty"`
	ParentBriefID   string                     `json:"parent_brief_id,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// Result is the payload of a finished analysis, both as the non-streaming
// response body and inside the terminal "complete" event.
type Result struct {
	Brief           json.RawMessage            `json:"brief"`
	ConfidenceScore float64                    `json:"confidence_score"`
	AgentOutputs    map[string]json.RawMessage `json:"agent_outputs"`
	Timing          map[string]float64         `json:"timing,omitempty"`
}

// NewFromResult builds a new Brief from r with a fresh id. parentID and
// feedback are empty for a first generation.
func NewFromResult(r Result, feedback, parentID string, now time.Time) (*Brief, error) {
	content := bytes.TrimSpace(r.Brief)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil, ErrEmptyBrief
	}

	var head struct {
		ExecutiveSummary string `json:"executive_summary"`
	}
	if err := json.Unmarshal(content, &head); err != nil {
		return nil, fmt.Errorf("decoding brief content: %w", err)
	}

	return &Brief{
		ID:              uuid.NewString(),
		Content:         content,
		Summary:         head.ExecutiveSummary,
		ConfidenceScore: r.ConfidenceScore,
		AgentOutputs:    r.AgentOutputs,
		Feedback:        feedback,
		ParentBriefID:   parentID,
		CreatedAt:       now.UTC(),
	}, nil
}

// IsRefinement reports whether b was generated from feedback on another
// brief.
func (b *Brief) IsRefinement() bool {
	return b.ParentBriefID != ""
}
