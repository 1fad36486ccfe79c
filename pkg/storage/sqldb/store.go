// Package sqldb implements storage.Driver on database/sql through sqlx.
// It is shared by the sqlite and postgres backends, which only differ in
// how the connection is opened and in the Dialect they pass.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/storage"
)

// Store is a SQL implementation of storage.Driver.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

var _ storage.Driver = (*Store)(nil)

// New wraps an open database, applies the dialect's pragmas and creates the
// schema. The Store takes ownership of db.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	x := sqlx.NewDb(db, d.Name)

	for _, stmt := range d.Pragmas {
		if _, err := x.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to execute pragma %q: %w", stmt, err)
		}
	}

	s := &Store{db: x, dialect: d}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	ts, fl := s.dialect.TimestampType, s.dialect.FloatType

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	company_size TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	industry TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	signed_up_at %[1]s,
	last_active %[1]s,
	created_at %[1]s NOT NULL
)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_users_status ON users(status)`,
		`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS briefs (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	confidence_score %[2]s NOT NULL DEFAULT 0,
	agent_outputs TEXT,
	feedback TEXT NOT NULL DEFAULT '',
	parent_brief_id TEXT REFERENCES briefs(id),
	created_at %[1]s NOT NULL
)`, ts, fl),
		`CREATE INDEX IF NOT EXISTS idx_briefs_created_at ON briefs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_briefs_parent ON briefs(parent_brief_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type userRow struct {
	ID          string       `db:"id"`
	Email       string       `db:"email"`
	Name        string       `db:"name"`
	Company     string       `db:"company"`
	CompanySize string       `db:"company_size"`
	Role        string       `db:"role"`
	Industry    string       `db:"industry"`
	Source      string       `db:"source"`
	Status      string       `db:"status"`
	SignedUpAt  sql.NullTime `db:"signed_up_at"`
	LastActive  sql.NullTime `db:"last_active"`
	CreatedAt   time.Time    `db:"created_at"`
}

const userColumns = `id, email, name, company, company_size, role, industry, source, status, signed_up_at, last_active, created_at`

func (r userRow) user() crm.User {
	return crm.User{
		ID:          r.ID,
		Email:       r.Email,
		Name:        r.Name,
		Company:     r.Company,
		CompanySize: r.CompanySize,
		Role:        r.Role,
		Industry:    r.Industry,
		Source:      crm.Source(r.Source),
		Status:      crm.Status(r.Status),
		SignedUpAt:  timePtr(r.SignedUpAt),
		LastActive:  timePtr(r.LastActive),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// PutUsers inserts users in one transaction, skipping existing emails.
func (s *Store) PutUsers(ctx context.Context, users []crm.User) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, s.db.Rebind(`INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (email) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare user insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, u := range users {
		if u.Email == "" {
			return 0, errors.New("cannot store user without email")
		}

		id := u.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := u.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}

		res, err := stmt.ExecContext(ctx,
			id, u.Email, u.Name, u.Company, u.CompanySize, u.Role, u.Industry,
			string(u.Source), string(u.Status),
			nullTime(u.SignedUpAt), nullTime(u.LastActive), created.UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert user %s: %w", u.Email, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit users: %w", err)
	}
	return inserted, nil
}

// CountUsers returns the number of stored users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// ListUsers returns users newest first.
func (s *Store) ListUsers(ctx context.Context, opts crm.ListOptions) ([]crm.User, error) {
	opts = opts.Normalize()

	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC, email ASC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]crm.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

// Stats aggregates stored users with one GROUP BY per dimension.
func (s *Store) Stats(ctx context.Context) (*crm.Stats, error) {
	stats := crm.NewStats()

	byStatus, err := s.groupCounts(ctx, "status")
	if err != nil {
		return nil, err
	}
	for status, n := range byStatus {
		stats.Total += n
		switch crm.Status(status) {
		case crm.StatusSignedUp:
			stats.SignedUp = n
		case crm.StatusNotEngaged:
			stats.NotEngaged = n
		}
	}

	dims := []struct {
		column string
		into   *map[string]int
	}{
		{"source", &stats.BySource},
		{"company_size", &stats.ByCompanySize},
		{"role", &stats.ByRole},
		{"industry", &stats.ByIndustry},
	}
	for _, d := range dims {
		counts, err := s.groupCounts(ctx, d.column)
		if err != nil {
			return nil, err
		}
		*d.into = counts
	}

	return stats, nil
}

// groupCounts counts users per value of column. column is always one of
// the fixed identifiers above, never user input.
func (s *Store) groupCounts(ctx context.Context, column string) (map[string]int, error) {
	var rows []struct {
		Key string `db:"k"`
		N   int    `db:"n"`
	}
	query := `SELECT ` + column + ` AS k, COUNT(*) AS n FROM users GROUP BY ` + column
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count users by %s: %w", column, err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Key] = r.N
	}
	return counts, nil
}

type briefRow struct {
	ID              string         `db:"id"`
	Content         string         `db:"content"`
	Summary         string         `db:"summary"`
	ConfidenceScore float64        `db:"confidence_score"`
	AgentOutputs    sql.NullString `db:"agent_outputs"`
	Feedback        string         `db:"feedback"`
	ParentBriefID   sql.NullString `db:"parent_brief_id"`
	CreatedAt       time.Time      `db:"created_at"`
}

const briefColumns = `id, content, summary, confidence_score, agent_outputs, feedback, parent_brief_id, created_at`

func (r briefRow) brief() (*brief.Brief, error) {
	b := &brief.Brief{
		ID:              r.ID,
		Content:         json.RawMessage(r.Content),
		Summary:         r.Summary,
		ConfidenceScore: r.ConfidenceScore,
		Feedback:        r.Feedback,
		ParentBriefID:   r.ParentBriefID.String,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.AgentOutputs.Valid && r.AgentOutputs.String != "" {
		if err := json.Unmarshal([]byte(r.AgentOutputs.String), &b.AgentOutputs); err != nil {
			return nil, fmt.Errorf("failed to decode agent outputs of brief %s: %w", r.ID, err)
		}
	}
	return b, nil
}

// PutBrief stores a new brief.
func (s *Store) PutBrief(ctx context.Context, b *brief.Brief) error {
	if b == nil {
		return errors.New("cannot store nil brief")
	}

	var outputs sql.NullString
	if b.AgentOutputs != nil {
		data, err := json.Marshal(b.AgentOutputs)
		if err != nil {
			return fmt.Errorf("failed to encode agent outputs: %w", err)
		}
		outputs = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists := func(id string) (bool, error) {
		var n int
		err := tx.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM briefs WHERE id = ?`), id)
		return n > 0, err
	}

	dup, err := exists(b.ID)
	if err != nil {
		return fmt.Errorf("failed to check brief %s: %w", b.ID, err)
	}
	if dup {
		return fmt.Errorf("brief %s: %w", b.ID, storage.ErrDuplicate)
	}

	var parent sql.NullString
	if b.ParentBriefID != "" {
		ok, err := exists(b.ParentBriefID)
		if err != nil {
			return fmt.Errorf("failed to check parent brief %s: %w", b.ParentBriefID, err)
		}
		if !ok {
			return storage.NotFoundError{Kind: "brief", ID: b.ParentBriefID}
		}
		parent = sql.NullString{String: b.ParentBriefID, Valid: true}
	}

	_, err = tx.ExecContext(ctx, s.db.Rebind(`INSERT INTO briefs (`+briefColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		b.ID, string(b.Content), b.Summary, b.ConfidenceScore, outputs, b.Feedback, parent, b.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert brief %s: %w", b.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit brief %s: %w", b.ID, err)
	}
	return nil
}

// GetBrief retrieves a brief by id.
func (s *Store) GetBrief(ctx context.Context, id string) (*brief.Brief, error) {
	var rows []briefRow
	query := s.db.Rebind(`SELECT ` + briefColumns + ` FROM briefs WHERE id = ?`)
	if err := s.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, fmt.Errorf("failed to get brief %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, storage.NotFoundError{Kind: "brief", ID: id}
	}
	return rows[0].brief()
}

// LatestBrief returns the most recently created brief.
func (s *Store) LatestBrief(ctx context.Context) (*brief.Brief, error) {
	briefs, err := s.ListBriefs(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(briefs) == 0 {
		return nil, storage.NotFoundError{Kind: "brief"}
	}
	return briefs[0], nil
}

// ListBriefs returns up to limit briefs, newest first.
func (s *Store) ListBriefs(ctx context.Context, limit int) ([]*brief.Brief, error) {
	if limit <= 0 {
		limit = storage.DefaultBriefListLimit
	}

	var rows []briefRow
	query := s.db.Rebind(`SELECT ` + briefColumns + ` FROM briefs ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list briefs: %w", err)
	}

	briefs := make([]*brief.Brief, 0, len(rows))
	for _, r := range rows {
		b, err := r.brief()
		if err != nil {
			return nil, err
		}
		briefs = append(briefs, b)
	}
	return briefs, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
