package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Index run states.
const (
	IndexBuilding = "building"
	IndexComplete = "complete"
)

// ProgressLastProcessedPath is the resume checkpoint written after each
// committed rebuild batch.
const ProgressLastProcessedPath = "last_processed_path"

// IndexStatus is the singleton status row in index.db. Timestamps are
// unix milliseconds; zero means never.
type IndexStatus struct {
	Status         string `json:"status"`
	ProcessedFiles int64  `json:"processedFiles"`
	TotalFiles     int64  `json:"totalFiles"`
	StartedAt      int64  `json:"startedAt,omitempty"`
	FinishedAt     int64  `json:"finishedAt,omitempty"`
	LastError      string `json:"lastError,omitempty"`
}

// GetIndexStatus returns the status row, creating the default on first
// call.
func (m *Manager) GetIndexStatus(ctx context.Context) (*IndexStatus, error) {
	if _, err := m.Index.Run(ctx, "seed_index_status",
		`INSERT OR IGNORE INTO index_status (id, status) VALUES (1, 'complete')`); err != nil {
		return nil, err
	}

	var st IndexStatus
	var started, finished sql.NullInt64
	var lastErr sql.NullString
	err := m.Index.Get(ctx, "get_index_status",
		`SELECT status, processed_files, total_files, started_at, finished_at, last_error
		 FROM index_status WHERE id = 1`,
	).Scan(&st.Status, &st.ProcessedFiles, &st.TotalFiles, &started, &finished, &lastErr)
	if err != nil {
		return nil, err
	}
	st.StartedAt = started.Int64
	st.FinishedAt = finished.Int64
	st.LastError = lastErr.String
	return &st, nil
}

// StartIndexRun marks a rebuild as building and resets its counters.
func (m *Manager) StartIndexRun(ctx context.Context, totalFiles int64) error {
	_, err := m.Index.Run(ctx, "start_index_run", `
		INSERT INTO index_status (id, status, processed_files, total_files, started_at, finished_at, last_error)
		VALUES (1, ?, 0, ?, ?, NULL, NULL)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			processed_files = 0,
			total_files = excluded.total_files,
			started_at = excluded.started_at,
			finished_at = NULL,
			last_error = NULL`,
		IndexBuilding, totalFiles, time.Now().UnixMilli())
	return err
}

// UpdateIndexProgress records counters mid-run.
func (m *Manager) UpdateIndexProgress(ctx context.Context, processed, total int64) error {
	_, err := m.Index.Run(ctx, "update_index_progress",
		`UPDATE index_status SET processed_files = ?, total_files = ? WHERE id = 1`,
		processed, total)
	return err
}

// FinishIndexRun marks the run complete. A non-empty lastError records
// why the run stopped; it does not reset counters.
func (m *Manager) FinishIndexRun(ctx context.Context, processed int64, lastError string) error {
	var errVal interface{}
	if lastError != "" {
		errVal = lastError
	}
	_, err := m.Index.Run(ctx, "finish_index_run", `
		UPDATE index_status
		SET status = ?, processed_files = ?, finished_at = ?, last_error = ?
		WHERE id = 1`,
		IndexComplete, processed, time.Now().UnixMilli(), errVal)
	return err
}

// RecordIndexError stores a failure on the status row without touching
// the run state. Change application uses this; full rebuilds record
// their error through FinishIndexRun.
func (m *Manager) RecordIndexError(ctx context.Context, msg string) error {
	_, err := m.Index.Run(ctx, "record_index_error",
		`UPDATE index_status SET last_error = ? WHERE id = 1`, msg)
	return err
}

// GetProgress returns a checkpoint value, or "" when unset.
func (m *Manager) GetProgress(ctx context.Context, key string) (string, error) {
	var v string
	err := m.Index.Get(ctx, "get_progress",
		`SELECT value FROM index_progress WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetProgress upserts a checkpoint value.
func (m *Manager) SetProgress(ctx context.Context, key, value string) error {
	_, err := m.Index.Run(ctx, "set_progress", `
		INSERT INTO index_progress (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// DeleteProgress clears a checkpoint.
func (m *Manager) DeleteProgress(ctx context.Context, key string) error {
	_, err := m.Index.Run(ctx, "delete_progress",
		`DELETE FROM index_progress WHERE key = ?`, key)
	return err
}
