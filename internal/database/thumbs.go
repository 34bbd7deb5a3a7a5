package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Thumbnail status values. "exists" promises the mirrored file is on
// disk; the reconciler re-verifies that promise continuously.
const (
	ThumbPending = "pending"
	ThumbExists  = "exists"
	ThumbFailed  = "failed"
)

// ThumbStatus tracks one media file's thumbnail. Mtime is the source
// file's mtime at generation time; a newer source mtime means stale.
type ThumbStatus struct {
	Path        string
	Mtime       int64
	Status      string
	LastChecked int64
}

// GetThumbStatus returns the row for path, or nil when none exists.
func (m *Manager) GetThumbStatus(ctx context.Context, path string) (*ThumbStatus, error) {
	var ts ThumbStatus
	err := m.Gallery.Get(ctx, "get_thumb_status",
		`SELECT path, mtime, status, last_checked FROM thumb_status WHERE path = ?`, path,
	).Scan(&ts.Path, &ts.Mtime, &ts.Status, &ts.LastChecked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// SetThumbStatus upserts one row, preserving last_checked.
func (m *Manager) SetThumbStatus(ctx context.Context, path string, mtime int64, status string) error {
	_, err := m.Gallery.Run(ctx, "set_thumb_status", `
		INSERT INTO thumb_status (path, mtime, status)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime, status = excluded.status`,
		path, mtime, status)
	return err
}

// SeedThumbStatus marks one media path pending inside a batch transaction.
// Rows whose mtime is unchanged keep their status, so a full rebuild does
// not send already-thumbnailed files back through the generator.
func (m *Manager) SeedThumbStatus(tx *sql.Tx, path string, mtime int64) error {
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO thumb_status (path, mtime, status)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime, status = excluded.status
			WHERE thumb_status.mtime <> excluded.mtime`,
		path, mtime, ThumbPending)
	if err != nil {
		return fmt.Errorf("seed thumb status %s: %w", path, err)
	}
	return nil
}

// ExistsBatch returns the least-recently-verified "exists" rows. Ordering
// by last_checked rotates the reconciler's scan fairly across the table.
func (m *Manager) ExistsBatch(ctx context.Context, limit int) ([]ThumbStatus, error) {
	var out []ThumbStatus
	err := m.Gallery.All(ctx, "thumb_exists_batch",
		`SELECT path, mtime, status, last_checked FROM thumb_status
		 WHERE status = ? ORDER BY last_checked ASC, path ASC LIMIT ?`,
		func(rows *sql.Rows) error {
			var ts ThumbStatus
			if err := rows.Scan(&ts.Path, &ts.Mtime, &ts.Status, &ts.LastChecked); err != nil {
				return err
			}
			out = append(out, ts)
			return nil
		}, ThumbExists, limit)
	return out, err
}

// TouchThumbChecks stamps last_checked on verified rows.
func (m *Manager) TouchThumbChecks(ctx context.Context, paths []string, now int64) error {
	if len(paths) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(paths)+1)
	args = append(args, now)
	for _, p := range paths {
		args = append(args, p)
	}
	_, err := m.Gallery.Run(ctx, "touch_thumb_checks",
		`UPDATE thumb_status SET last_checked = ? WHERE path IN (`+placeholders(len(paths))+`)`,
		args...)
	return err
}

// ResetThumbStatuses flips the given rows back to pending so they are
// regenerated.
func (m *Manager) ResetThumbStatuses(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := make([]interface{}, len(paths))
	for i, p := range paths {
		args[i] = p
	}
	_, err := m.Gallery.Run(ctx, "reset_thumb_statuses",
		`UPDATE thumb_status SET status = 'pending' WHERE path IN (`+placeholders(len(paths))+`)`,
		args...)
	return err
}

// ResetAllExists flips every "exists" row back to pending. Startup
// self-heal calls this after detecting an emptied thumbnail volume.
func (m *Manager) ResetAllExists(ctx context.Context) (int64, error) {
	res, err := m.Gallery.Run(ctx, "reset_all_exists",
		`UPDATE thumb_status SET status = 'pending' WHERE status = 'exists'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SampleExistsPaths returns up to n paths currently marked exists, the
// self-heal spot check.
func (m *Manager) SampleExistsPaths(ctx context.Context, n int) ([]string, error) {
	var out []string
	err := m.Gallery.All(ctx, "sample_exists_paths",
		`SELECT path FROM thumb_status WHERE status = 'exists' LIMIT ?`,
		func(rows *sql.Rows) error {
			var p string
			if err := rows.Scan(&p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		}, n)
	return out, err
}

// CountThumbsByStatus returns row counts keyed by status.
func (m *Manager) CountThumbsByStatus(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, 3)
	err := m.Gallery.All(ctx, "count_thumbs_by_status",
		`SELECT status, COUNT(*) FROM thumb_status GROUP BY status`,
		func(rows *sql.Rows) error {
			var status string
			var n int64
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			out[status] = n
			return nil
		})
	return out, err
}
