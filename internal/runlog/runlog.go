// Package runlog persists audit records for batch job executions.
package runlog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Run represents one recorded job execution.
type Run struct {
	ID                   int64     `json:"id"`
	Operator             string    `json:"operator"`
	ProcessedEnrollments int       `json:"processed_enrollments"`
	CreatedDues          int       `json:"created_dues"`
	Notes                string    `json:"notes"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
}

// Store writes and reads billing run records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record persists one run entry.
func (s *Store) Record(ctx context.Context, run Run) error {
	if s == nil || s.pool == nil {
		return errors.New("runlog: store not initialised")
	}
	if run.Operator == "" {
		return errors.New("runlog: operator required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO billing_runs (operator, processed_enrollments, created_dues, notes, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.Operator, run.ProcessedEnrollments, run.CreatedDues, run.Notes, run.StartedAt, run.FinishedAt)
	return err
}

// Recent lists the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, operator, processed_enrollments, created_dues, notes, started_at, finished_at
		FROM billing_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Operator, &r.ProcessedEnrollments, &r.CreatedDues, &r.Notes, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
