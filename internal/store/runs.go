package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// CreateRun persists a run record. CreatedAt defaults to now.
func (s *SQLiteStore) CreateRun(ctx context.Context, r models.RunRecord) error {
	if r.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO discovery_runs (run_id, user_id, inputs, outputs, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.RunID, r.UserID, r.Inputs, r.Outputs, r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return tx.Commit()
}

// GetRun loads one run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, user_id, inputs, outputs, created_at FROM discovery_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListRuns returns a user's most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, userID string, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, user_id, inputs, outputs, created_at FROM discovery_runs
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CountRunsSince counts a user's runs created at or after since.
func (s *SQLiteStore) CountRunsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM discovery_runs WHERE user_id = ? AND created_at >= ?`,
		userID, since.UTC().Format(timeLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.RunRecord, error) {
	var r models.RunRecord
	var created string
	if err := sc.Scan(&r.RunID, &r.UserID, &r.Inputs, &r.Outputs, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	r.CreatedAt = t
	return &r, nil
}
