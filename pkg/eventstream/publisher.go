package eventstream

import "context"

// Publisher publishes brief events to an event stream backend.
type Publisher interface {
	PublishBrief(ctx context.Context, event *BriefGeneratedEvent) error
	Close() error
}
