// Package inmemory provides a map-backed storage driver for tests and
// ephemeral demo servers.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards every map below
	mu sync.RWMutex

	// users is keyed by email, the natural key of a CRM record
	users map[string]crm.User

	// briefs is keyed by brief id
	briefs map[string]*brief.Brief
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		users:  make(map[string]crm.User),
		briefs: make(map[string]*brief.Brief),
	}
}

// PutUsers inserts users not already present by email.
func (d *Driver) PutUsers(_ context.Context, users []crm.User) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	inserted := 0
	for _, u := range users {
		if u.Email == "" {
			return inserted, errors.New("cannot store user without email")
		}
		if _, ok := d.users[u.Email]; ok {
			continue
		}
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
		d.users[u.Email] = u
		inserted++
	}
	return inserted, nil
}

// CountUsers returns the number of stored users.
func (d *Driver) CountUsers(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users), nil
}

// ListUsers returns users newest first.
func (d *Driver) ListUsers(_ context.Context, opts crm.ListOptions) ([]crm.User, error) {
	opts = opts.Normalize()

	d.mu.RLock()
	matched := make([]crm.User, 0, len(d.users))
	for _, u := range d.users {
		if opts.Status != "" && u.Status != opts.Status {
			continue
		}
		matched = append(matched, u)
	}
	d.mu.RUnlock()

	slices.SortFunc(matched, func(a, b crm.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Email, b.Email)
	})

	if opts.Offset >= len(matched) {
		return []crm.User{}, nil
	}
	end := min(opts.Offset+opts.Limit, len(matched))
	return matched[opts.Offset:end], nil
}

// Stats aggregates all stored users.
func (d *Driver) Stats(_ context.Context) (*crm.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := crm.NewStats()
	for _, u := range d.users {
		stats.Add(u)
	}
	return stats, nil
}

// PutBrief stores a copy of b.
func (d *Driver) PutBrief(_ context.Context, b *brief.Brief) error {
	if b == nil {
		return errors.New("cannot store nil brief")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.briefs[b.ID]; ok {
		return fmt.Errorf("brief %s: %w", b.ID, storage.ErrDuplicate)
	}
	if b.ParentBriefID != "" {
		if _, ok := d.briefs[b.ParentBriefID]; !ok {
			return storage.NotFoundError{Kind: "brief", ID: b.ParentBriefID}
		}
	}

	stored := *b
	d.briefs[b.ID] = &stored
	return nil
}

// GetBrief retrieves a brief by id.
func (d *Driver) GetBrief(_ context.Context, id string) (*brief.Brief, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.briefs[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "brief", ID: id}
	}

	out := *b
	return &out, nil
}

// LatestBrief returns the most recently created brief.
func (d *Driver) LatestBrief(ctx context.Context) (*brief.Brief, error) {
	briefs, err := d.ListBriefs(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(briefs) == 0 {
		return nil, storage.NotFoundError{Kind: "brief"}
	}
	return briefs[0], nil
}

// ListBriefs returns up to limit briefs, newest first.
func (d *Driver) ListBriefs(_ context.Context, limit int) ([]*brief.Brief, error) {
	if limit <= 0 {
		limit = storage.DefaultBriefListLimit
	}

	d.mu.RLock()
	all := make([]*brief.Brief, 0, len(d.briefs))
	for _, b := range d.briefs {
		out := *b
		all = append(all, &out)
	}
	d.mu.RUnlock()

	slices.SortFunc(all, func(a, b *brief.Brief) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return all[:min(limit, len(all))], nil
}

// Close is a no-op for the in-memory store.
func (d *Driver) Close() error {
	return nil
}
