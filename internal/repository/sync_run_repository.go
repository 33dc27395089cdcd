package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/iliyamo/venue-directory/internal/model"
)

// SyncRunRepo is the per-source run log. Rows are opened as running and
// finalized exactly once.
type SyncRunRepo struct {
	db *sql.DB
}

// NewSyncRunRepo constructs a SyncRunRepo with the provided DB handle.
func NewSyncRunRepo(db *sql.DB) *SyncRunRepo {
	return &SyncRunRepo{db: db}
}

// Start opens a running entry and returns its id.
func (r *SyncRunRepo) Start(ctx context.Context, runID, source string, startedAt time.Time) (uint64, error) {
	const q = `INSERT INTO sync_runs (run_id, source, status, found, added, updated, skipped, errors, started_at)
		VALUES (?, ?, ?, 0, 0, 0, 0, JSON_ARRAY(), ?)`
	res, err := r.db.ExecContext(ctx, q, runID, source, model.RunRunning, startedAt.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Finish writes the final counts and error list. Only a running entry can
// be finished; anything else returns ErrRunClosed.
func (r *SyncRunRepo) Finish(ctx context.Context, run *model.SyncRun) error {
	errs := run.Errors
	if errs == nil {
		errs = []model.RunError{}
	}
	payload, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	const q = `UPDATE sync_runs
		SET status = ?, found = ?, added = ?, updated = ?, skipped = ?, errors = ?, finished_at = ?
		WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q,
		run.Status, run.Found, run.Added, run.Updated, run.Skipped, string(payload), finished,
		run.ID, model.RunRunning,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunClosed
	}
	return nil
}

// List returns the newest entries first, optionally for one source.
func (r *SyncRunRepo) List(ctx context.Context, source string, limit int) ([]model.SyncRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT id, run_id, source, status, found, added, updated, skipped, errors, started_at, finished_at
		FROM sync_runs`
	args := []any{}
	if source != "" {
		q += " WHERE source = ?"
		args = append(args, source)
	}
	q += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.SyncRun{}
	for rows.Next() {
		var (
			run      model.SyncRun
			errs     []byte
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.RunID, &run.Source, &run.Status, &run.Found, &run.Added,
			&run.Updated, &run.Skipped, &errs, &run.StartedAt, &finished); err != nil {
			return nil, err
		}
		run.Errors = []model.RunError{}
		if len(errs) > 0 {
			if err := json.Unmarshal(errs, &run.Errors); err != nil {
				return nil, fmt.Errorf("sync run %d errors: %w", run.ID, err)
			}
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastSuccessful returns, per source, when its newest completed run
// finished.
func (r *SyncRunRepo) LastSuccessful(ctx context.Context) (map[string]time.Time, error) {
	const q = `SELECT source, MAX(finished_at) FROM sync_runs
		WHERE status = ? GROUP BY source`
	rows, err := r.db.QueryContext(ctx, q, model.RunCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]time.Time{}
	for rows.Next() {
		var (
			source string
			at     sql.NullTime
		)
		if err := rows.Scan(&source, &at); err != nil {
			return nil, err
		}
		if at.Valid {
			out[source] = at.Time
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
