package nop

import (
	"context"

	"github.com/papercomputeco/apm/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishBrief validates input and otherwise does nothing.
func (p *Publisher) PublishBrief(_ context.Context, event *eventstream.BriefGeneratedEvent) error {
	if event == nil {
		return eventstream.ErrNilBriefEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
