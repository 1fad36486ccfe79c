// Package storage defines the persistence interfaces for CRM users and
// generated briefs, implemented by the inmemory, sqlite and postgres
// backends.
package storage

import (
	"context"

	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/crm"
)

// DefaultBriefListLimit is used by ListBriefs when no limit is given.
const DefaultBriefListLimit = 50

// UserStore persists CRM users.
type UserStore interface {
	// PutUsers inserts users, skipping any whose email already exists.
	// It returns the number of newly inserted users.
	PutUsers(ctx context.Context, users []crm.User) (int, error)

	// CountUsers returns the number of stored users.
	CountUsers(ctx context.Context) (int, error)

	// ListUsers returns users newest first, paged and filtered by opts.
	// opts is normalised before use.
	ListUsers(ctx context.Context, opts crm.ListOptions) ([]crm.User, error)

	// Stats aggregates all stored users.
	Stats(ctx context.Context) (*crm.Stats, error)
}

// BriefStore persists generated briefs.
type BriefStore interface {
	// PutBrief stores a new brief. A non-empty ParentBriefID must reference
	// an existing brief, otherwise a NotFoundError is returned.
	PutBrief(ctx context.Context, b *brief.Brief) error

	// GetBrief retrieves a brief by id.
	GetBrief(ctx context.Context, id string) (*brief.Brief, error)

	// LatestBrief returns the most recently created brief.
	LatestBrief(ctx context.Context) (*brief.Brief, error)

	// ListBriefs returns up to limit briefs, newest first.
	ListBriefs(ctx context.Context, limit int) ([]*brief.Brief, error)
}

// Driver is a complete storage backend.
type Driver interface {
	UserStore
	BriefStore

	// Close closes the store and releases any resources.
	Close() error
}
