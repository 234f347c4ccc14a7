package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/paperfig/internal/engine"
)

// ErrRunNotIndexed is returned for run ids the index has never seen.
var ErrRunNotIndexed = errors.New("run not indexed")

// RunEntry is one row of the run index.
type RunEntry struct {
	RunID         string `json:"run_id"`
	SourcePath    string `json:"source_path"`
	CreatedAt     string `json:"created_at"`
	FinishedAt    string `json:"finished_at,omitempty"`
	Status        string `json:"status"`
	RerunOf       string `json:"rerun_of,omitempty"`
	ConfigHash    string `json:"config_hash,omitempty"`
	TotalFigures  int    `json:"total_figures"`
	AcceptedCount int    `json:"accepted_count"`
	Error         string `json:"error,omitempty"`
}

// ListOptions filters ListRuns. Zero values mean no filter.
type ListOptions struct {
	Status string
	Limit  int
}

// RecordRunStarted implements engine.RunIndex. Recording the same run id
// twice resets the row to running.
func (s *Store) RecordRunStarted(ctx context.Context, rec engine.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, source_path, created_at, status, rerun_of, config_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			source_path = excluded.source_path,
			created_at = excluded.created_at,
			status = excluded.status,
			rerun_of = excluded.rerun_of,
			config_hash = excluded.config_hash,
			finished_at = '',
			error = ''
	`, rec.RunID, rec.SourcePath, rec.CreatedAt, engine.RunStatusRunning, rec.RerunOf, rec.ConfigHash)
	if err != nil {
		return fmt.Errorf("record run %s started: %w", rec.RunID, err)
	}
	return nil
}

// RecordRunFinished implements engine.RunIndex.
func (s *Store) RecordRunFinished(ctx context.Context, out engine.RunOutcome) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, finished_at = ?, total_figures = ?, accepted_count = ?, error = ?
		WHERE run_id = ?
	`, out.Status, out.FinishedAt, out.TotalFigures, out.AcceptedCount, out.Error, out.RunID)
	if err != nil {
		return fmt.Errorf("record run %s finished: %w", out.RunID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record run %s finished: %w", out.RunID, err)
	}
	if n == 0 {
		return fmt.Errorf("record run %s finished: %w", out.RunID, ErrRunNotIndexed)
	}
	return nil
}

const selectRun = `
	SELECT run_id, source_path, created_at, finished_at, status, rerun_of,
	       config_hash, total_figures, accepted_count, error
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunEntry, error) {
	var e RunEntry
	err := row.Scan(&e.RunID, &e.SourcePath, &e.CreatedAt, &e.FinishedAt, &e.Status,
		&e.RerunOf, &e.ConfigHash, &e.TotalFigures, &e.AcceptedCount, &e.Error)
	return e, err
}

// GetRun returns one run or ErrRunNotIndexed.
func (s *Store) GetRun(ctx context.Context, runID string) (RunEntry, error) {
	e, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return RunEntry{}, fmt.Errorf("%s: %w", runID, ErrRunNotIndexed)
	}
	if err != nil {
		return RunEntry{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return e, nil
}

// ListRuns returns runs newest first. Returns an empty slice, not nil.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]RunEntry, error) {
	query := selectRun
	var args []any
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY created_at DESC, run_id COLLATE BINARY DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	entries := []RunEntry{}
	for rows.Next() {
		e, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return entries, nil
}

// Reruns returns the runs replayed from runID, oldest first.
func (s *Store) Reruns(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM runs WHERE rerun_of = ? ORDER BY created_at ASC, run_id COLLATE BINARY ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query reruns: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan rerun: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
