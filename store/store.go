// Package store persists probe results and generator checkpoints to SQLite.
//
// probe_results is append-only: one row per probed candidate, never
// updated. checkpoints holds the serialized generator state per run,
// written in the same transaction as the result row so a crash can never
// leave the odometer ahead of or behind the log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/couponscan/dbopen"
	"github.com/hazyhaar/couponscan/idgen"
)

// Schema contains the DDL for the couponscan tables.
const Schema = `
CREATE TABLE IF NOT EXISTS probe_results (
	result_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	candidate TEXT NOT NULL,
	classification TEXT NOT NULL,
	reason TEXT,
	attempts INTEGER NOT NULL DEFAULT 1,
	duration_ms INTEGER,
	url TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_run ON probe_results(run_id, created_at);
CREATE INDEX IF NOT EXISTS idx_results_class ON probe_results(run_id, classification);

CREATE TABLE IF NOT EXISTS checkpoints (
	run_id TEXT PRIMARY KEY,
	base_pattern TEXT NOT NULL,
	state TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Result is one append-only probe record.
type Result struct {
	ID             string
	RunID          string
	Candidate      string
	Classification string
	Reason         string
	Attempts       int
	DurationMs     int64
	URL            string
	CreatedAt      time.Time
}

// Summary is the per-run classification tally.
type Summary struct {
	Accepted     int64 `json:"accepted"`
	Rejected     int64 `json:"rejected"`
	Inconclusive int64 `json:"inconclusive"`
	Total        int64 `json:"total"`
}

// Store wraps the couponscan database.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets a custom ID generator for result IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// New wraps an already-open database. The Schema must have been applied.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		newID: idgen.Prefixed("res_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens (creating if needed) the couponscan database at path and
// applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return New(db, opts...), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records a probe result and the generator state that follows it in
// a single transaction. basePattern identifies the run's enumeration space;
// state is the serialized odometer. If this fails the caller must stop:
// advancing past an unsaved checkpoint risks skipping or repeating
// candidates on resume.
func (s *Store) Append(ctx context.Context, res *Result, basePattern string, state []byte) error {
	if res.ID == "" {
		res.ID = s.newID()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	if res.Attempts <= 0 {
		res.Attempts = 1
	}

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO probe_results (
				result_id, run_id, candidate, classification, reason,
				attempts, duration_ms, url, created_at
			) VALUES (?,?,?,?,?,?,?,?,?)`,
			res.ID, res.RunID, res.Candidate, res.Classification, res.Reason,
			res.Attempts, res.DurationMs, res.URL, res.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("store: insert result: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO checkpoints (run_id, base_pattern, state, updated_at)
			VALUES (?,?,?,?)
			ON CONFLICT(run_id) DO UPDATE SET
				base_pattern = excluded.base_pattern,
				state = excluded.state,
				updated_at = excluded.updated_at`,
			res.RunID, basePattern, string(state), time.Now().Unix())
		if err != nil {
			return fmt.Errorf("store: upsert checkpoint: %w", err)
		}
		return nil
	})
}

// Checkpoint returns the latest serialized generator state for a run.
// ok is false when the run has no checkpoint yet.
func (s *Store) Checkpoint(ctx context.Context, runID string) (state []byte, basePattern string, ok bool, err error) {
	var st string
	err = s.db.QueryRowContext(ctx,
		`SELECT state, base_pattern FROM checkpoints WHERE run_id = ?`, runID).
		Scan(&st, &basePattern)
	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("store: load checkpoint: %w", err)
	}
	return []byte(st), basePattern, true, nil
}

// Summary tallies a run's results by classification.
func (s *Store) Summary(ctx context.Context, runID string) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT classification, COUNT(*) FROM probe_results
		WHERE run_id = ? GROUP BY classification`, runID)
	if err != nil {
		return Summary{}, fmt.Errorf("store: summary: %w", err)
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var class string
		var n int64
		if err := rows.Scan(&class, &n); err != nil {
			return Summary{}, fmt.Errorf("store: summary scan: %w", err)
		}
		switch class {
		case "accepted":
			sum.Accepted = n
		case "rejected":
			sum.Rejected = n
		default:
			sum.Inconclusive += n
		}
		sum.Total += n
	}
	return sum, rows.Err()
}

// Accepted returns the candidates classified as accepted for a run, in
// probe order.
func (s *Store) Accepted(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate FROM probe_results
		WHERE run_id = ? AND classification = 'accepted'
		ORDER BY created_at, result_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: accepted: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("store: accepted scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
