package crm

const (
	// DefaultListLimit is used when no limit is requested.
	DefaultListLimit = 300

	// MaxListLimit caps any requested limit.
	MaxListLimit = 500
)

// ListOptions pages and filters a user listing. Results are ordered newest
// first by creation time.
type ListOptions struct {
	Limit  int
	Offset int

	// Status filters by status when non-empty.
	Status Status
}

// Normalize applies defaults and bounds.
func (o ListOptions) Normalize() ListOptions {
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultListLimit
	case o.Limit > MaxListLimit:
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
