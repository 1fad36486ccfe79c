// Package eventstream defines the events emitted when briefs are generated and
// the publishers that deliver them to downstream consumers.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/apm/pkg/brief"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeBriefGenerated is emitted after a brief is persisted.
	EventTypeBriefGenerated = "apm.brief.generated"
)

// BriefGeneratedEvent is a transport-neutral event payload for a persisted
// brief.
type BriefGeneratedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Brief         BriefMeta   `json:"brief"`
}

// EventSource identifies which path produced the brief.
type EventSource struct {
	// Streaming is true when the brief came from a streamed generation.
	Streaming bool `json:"streaming"`

	// Users is the number of CRM users the analysis ran over.
	Users int `json:"users"`
}

// BriefMeta is the summary of the persisted brief carried by the event. The
// full content stays in storage.
type BriefMeta struct {
	ID              string    `json:"id"`
	ParentID        *string   `json:"parent_id,omitempty"`
	ConfidenceScore float64   `json:"confidence_score"`
	Summary         string    `json:"summary"`
	HasFeedback     bool      `json:"has_feedback"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewBriefGeneratedEvent builds the event for b.
func NewBriefGeneratedEvent(b *brief.Brief, source EventSource, now time.Time) *BriefGeneratedEvent {
	meta := BriefMeta{
		ID:              b.ID,
		ConfidenceScore: b.ConfidenceScore,
		Summary:         b.Summary,
		HasFeedback:     b.Feedback != "",
		CreatedAt:       b.CreatedAt,
	}
	if b.ParentBriefID != "" {
		parent := b.ParentBriefID
		meta.ParentID = &parent
	}

	return &BriefGeneratedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeBriefGenerated,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Source:        source,
		Brief:         meta,
	}
}
