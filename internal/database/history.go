package database

import (
	"context"
	"database/sql"
)

// TouchViewTimes records a view for every path in the chain (the item
// plus each ancestor album) in one transaction, so "last viewed" ordering
// propagates up to parent albums atomically.
func (m *Manager) TouchViewTimes(ctx context.Context, userID string, paths []string, viewedAt int64) error {
	if len(paths) == 0 {
		return nil
	}
	rows := make([][]interface{}, len(paths))
	for i, p := range paths {
		rows[i] = []interface{}{userID, p, viewedAt}
	}
	return m.History.RunPreparedBatch(ctx, "touch_view_times", `
		INSERT INTO view_history (user_id, item_path, viewed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, item_path) DO UPDATE SET viewed_at = excluded.viewed_at`,
		rows, DefaultBatchOptions())
}

// LastViewedForPaths returns the user's view time per path. Paths never
// viewed are absent. This feeds the viewed_desc page re-sort; the page is
// small, so the lookup is one IN query rather than a cross-database join.
func (m *Manager) LastViewedForPaths(ctx context.Context, userID string, paths []string) (map[string]int64, error) {
	out := make(map[string]int64, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	args := make([]interface{}, 0, len(paths)+1)
	args = append(args, userID)
	for _, p := range paths {
		args = append(args, p)
	}
	err := m.History.All(ctx, "last_viewed_for_paths",
		`SELECT item_path, viewed_at FROM view_history
		 WHERE user_id = ? AND item_path IN (`+placeholders(len(paths))+`)`,
		func(rows *sql.Rows) error {
			var p string
			var at int64
			if err := rows.Scan(&p, &at); err != nil {
				return err
			}
			out[p] = at
			return nil
		}, args...)
	if err != nil {
		return nil, err
	}
	return out, nil
}
