// Package briefing generates meeting briefs from the stored CRM users by
// calling the analysis service, and persists them with their refinement
// lineage.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/analysis"
	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/eventstream"
	"github.com/papercomputeco/apm/pkg/storage"
	"github.com/papercomputeco/apm/pkg/worker"
)

var (
	// ErrInvalidFeedback is returned when a refinement is missing its parent
	// brief id or its feedback text.
	ErrInvalidFeedback = errors.New("brief_id and feedback are required")

	// ErrNoUsers is returned when a brief is requested before any CRM users
	// have been imported.
	ErrNoUsers = errors.New("no CRM users; connect a CRM or seed mock data first")
)

// SeedThreshold is the user count at which Seed stops inserting.
const SeedThreshold = crm.MockTotal

// Analyzer runs the analysis pipeline. *analysis.Client implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*brief.Result, error)
	Open(ctx context.Context, req analysis.Request) (*analysis.EventStream, error)
}

// Config configures a Service.
type Config struct {
	Store    storage.Driver
	Analyzer Analyzer

	// Pool publishes brief events. Optional.
	Pool *worker.Pool

	// UserLimit caps the users sent to the analysis service. Defaults to
	// crm.MaxListLimit.
	UserLimit int

	Logger *zap.Logger

	// Now is the clock used for created_at stamps. Defaults to time.Now.
	Now func() time.Time
}

// Service generates, refines and retrieves briefs.
type Service struct {
	store     storage.Driver
	analyzer  Analyzer
	pool      *worker.Pool
	userLimit int
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}

	s := &Service{
		store:     cfg.Store,
		analyzer:  cfg.Analyzer,
		pool:      cfg.Pool,
		userLimit: cfg.UserLimit,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if s.userLimit <= 0 {
		s.userLimit = crm.MaxListLimit
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Generate runs the pipeline over the stored users and persists a new root
// brief.
func (s *Service) Generate(ctx context.Context) (*brief.Brief, error) {
	req, err := s.request(ctx, nil)
	if err != nil {
		return nil, err
	}

	result, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	return s.persist(ctx, *result, "", "", eventstream.EventSource{Users: len(req.Users)})
}

// Regenerate refines the brief parentID with feedback. The parent's content
// is sent along so the agents can revise it.
func (s *Service) Regenerate(ctx context.Context, parentID, feedback string) (*brief.Brief, error) {
	parent, err := s.parent(ctx, parentID, feedback)
	if err != nil {
		return nil, err
	}

	req, err := s.request(ctx, parent)
	if err != nil {
		return nil, err
	}
	req.Feedback = strings.TrimSpace(feedback)

	result, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	return s.persist(ctx, *result, req.Feedback, parent.ID, eventstream.EventSource{Users: len(req.Users)})
}

// Latest returns the most recent brief.
func (s *Service) Latest(ctx context.Context) (*brief.Brief, error) {
	return s.store.LatestBrief(ctx)
}

// Get returns the brief id.
func (s *Service) Get(ctx context.Context, id string) (*brief.Brief, error) {
	return s.store.GetBrief(ctx, id)
}

// List returns up to limit briefs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*brief.Brief, error) {
	return s.store.ListBriefs(ctx, limit)
}

// Lineage returns the brief id followed by each of its ancestors up to the
// root. A missing ancestor or a cycle ends the walk early.
func (s *Service) Lineage(ctx context.Context, id string) ([]*brief.Brief, error) {
	b, err := s.store.GetBrief(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := []*brief.Brief{b}
	seen := map[string]bool{b.ID: true}
	for b.ParentBriefID != "" {
		if seen[b.ParentBriefID] {
			s.logger.Warn("brief lineage has a cycle", zap.String("brief_id", id), zap.String("at", b.ParentBriefID))
			break
		}

		parent, err := s.store.GetBrief(ctx, b.ParentBriefID)
		if storage.IsNotFound(err) {
			s.logger.Warn("brief lineage is broken", zap.String("brief_id", b.ID), zap.String("missing_parent", b.ParentBriefID))
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loading parent brief %s: %w", b.ParentBriefID, err)
		}

		seen[parent.ID] = true
		chain = append(chain, parent)
		b = parent
	}
	return chain, nil
}

// SeedResult reports the outcome of Seed.
type SeedResult struct {
	Inserted int    `json:"inserted"`
	Total    int    `json:"total"`
	Message  string `json:"message"`
}

// Seed imports the mock CRM users. Once SeedThreshold users exist it does
// nothing.
func (s *Service) Seed(ctx context.Context) (*SeedResult, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	if count >= SeedThreshold {
		return &SeedResult{Inserted: 0, Total: count, Message: "Data already seeded"}, nil
	}

	n, err := s.store.PutUsers(ctx, crm.MockUsers(s.now()))
	if err != nil {
		return nil, fmt.Errorf("seeding users: %w", err)
	}

	s.logger.Info("seeded mock CRM users", zap.Int("inserted", n))
	return &SeedResult{Inserted: n, Total: count + n, Message: fmt.Sprintf("Seeded %d users", n)}, nil
}

// Users lists the stored users.
func (s *Service) Users(ctx context.Context, opts crm.ListOptions) ([]crm.User, error) {
	return s.store.ListUsers(ctx, opts)
}

// Stats aggregates the stored users.
func (s *Service) Stats(ctx context.Context) (*crm.Stats, error) {
	return s.store.Stats(ctx)
}

// parent validates a refinement request and loads the brief it refines.
func (s *Service) parent(ctx context.Context, parentID, feedback string) (*brief.Brief, error) {
	if strings.TrimSpace(parentID) == "" || strings.TrimSpace(feedback) == "" {
		return nil, ErrInvalidFeedback
	}
	return s.store.GetBrief(ctx, parentID)
}

// request builds the analysis request from the stored users. parent is set
// for refinements.
func (s *Service) request(ctx context.Context, parent *brief.Brief) (analysis.Request, error) {
	users, err := s.store.ListUsers(ctx, crm.ListOptions{Limit: s.userLimit})
	if err != nil {
		return analysis.Request{}, fmt.Errorf("loading users: %w", err)
	}
	if len(users) == 0 {
		return analysis.Request{}, ErrNoUsers
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return analysis.Request{}, fmt.Errorf("loading stats: %w", err)
	}

	req := analysis.Request{Users: users, Stats: stats}
	if parent != nil {
		req.PreviousBrief = parent.Content
	}
	return req, nil
}

// persist stores the brief built from result and publishes its event.
func (s *Service) persist(ctx context.Context, result brief.Result, feedback, parentID string, source eventstream.EventSource) (*brief.Brief, error) {
	b, err := brief.NewFromResult(result, feedback, parentID, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.PutBrief(ctx, b); err != nil {
		return nil, fmt.Errorf("storing brief: %w", err)
	}

	s.logger.Info("brief generated",
		zap.String("brief_id", b.ID),
		zap.String("parent_brief_id", b.ParentBriefID),
		zap.Float64("confidence_score", b.ConfidenceScore),
		zap.Bool("streaming", source.Streaming),
	)

	if s.pool != nil {
		s.pool.Enqueue(worker.Job{Event: eventstream.NewBriefGeneratedEvent(b, source, s.now())})
	}
	return b, nil
}
