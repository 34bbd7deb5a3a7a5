package database

import (
	"context"
	"fmt"
	"time"

	"media-gallery/internal/logging"
)

// Core schemas. Everything is CREATE IF NOT EXISTS so EnsureCoreTables can
// run on every boot; workers that race startup then never see a missing
// table.
const gallerySchema = `
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	path TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	mtime INTEGER NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	cover_path TEXT,
	last_viewed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_items_type_path ON items(type, path);
CREATE INDEX IF NOT EXISTS idx_items_mtime ON items(mtime DESC, path DESC);
CREATE INDEX IF NOT EXISTS idx_items_name ON items(name COLLATE NOCASE);

-- Application-maintained: the indexer writes rows in the same transaction
-- as items. No triggers; they double-write under batch upserts.
CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
	name,
	tokenize='unicode61'
);

CREATE TABLE IF NOT EXISTS album_covers (
	album_path TEXT PRIMARY KEY,
	cover_path TEXT NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	mtime INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS thumb_status (
	path TEXT PRIMARY KEY,
	mtime INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	last_checked INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_thumb_status_status ON thumb_status(status, last_checked);
`

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const historySchema = `
CREATE TABLE IF NOT EXISTS view_history (
	user_id TEXT NOT NULL,
	item_path TEXT NOT NULL,
	viewed_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, item_path)
);

CREATE INDEX IF NOT EXISTS idx_view_history_user ON view_history(user_id, viewed_at);
`

const indexSchema = `
CREATE TABLE IF NOT EXISTS index_status (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	status TEXT NOT NULL DEFAULT 'complete',
	processed_files INTEGER NOT NULL DEFAULT 0,
	total_files INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER,
	finished_at INTEGER,
	last_error TEXT
);

CREATE TABLE IF NOT EXISTS index_progress (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// EnsureCoreTables creates any missing tables across all four stores.
// Idempotent; called on every boot and safe to call again at runtime.
func (m *Manager) EnsureCoreTables(ctx context.Context) error {
	for _, s := range []struct {
		db     *DB
		schema string
	}{
		{m.Gallery, gallerySchema},
		{m.Settings, settingsSchema},
		{m.History, historySchema},
		{m.Index, indexSchema},
	} {
		if _, err := s.db.Run(ctx, "ensure_tables", s.schema); err != nil {
			return fmt.Errorf("%s schema: %w", s.db.name, err)
		}
	}
	return nil
}

// Migration is one keyed schema step. Applied keys are recorded in a
// per-database migrations table, so re-running is a no-op. Precondition,
// when set, is consulted before applying: false means the step is not
// needed (the table already has the shape) and it is recorded as applied
// without running.
type Migration struct {
	Key          string
	Precondition func(ctx context.Context, d *DB) (bool, error)
	SQL          string
}

// Migrate applies the pending steps for one store.
func (d *DB) Migrate(ctx context.Context, steps []Migration) error {
	if _, err := d.Run(ctx, "ensure_migrations_table",
		`CREATE TABLE IF NOT EXISTS migrations (key TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)`); err != nil {
		return err
	}

	for _, step := range steps {
		var applied int
		err := d.Get(ctx, "check_migration",
			`SELECT COUNT(*) FROM migrations WHERE key = ?`, step.Key).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", step.Key, err)
		}
		if applied > 0 {
			continue
		}

		needed := true
		if step.Precondition != nil {
			needed, err = step.Precondition(ctx, d)
			if err != nil {
				return fmt.Errorf("precondition for migration %s: %w", step.Key, err)
			}
		}

		if needed {
			logging.Info("Migrating %s database: %s", d.name, step.Key)
			batch, err := d.BeginBatch(ctx)
			if err != nil {
				return fmt.Errorf("begin migration %s: %w", step.Key, err)
			}
			_, err = batch.Tx.ExecContext(ctx, step.SQL)
			if err == nil {
				_, err = batch.Tx.ExecContext(ctx,
					`INSERT INTO migrations (key, applied_at) VALUES (?, ?)`,
					step.Key, time.Now().Unix())
			}
			if err := batch.End(err); err != nil {
				return fmt.Errorf("apply migration %s: %w", step.Key, err)
			}
			logging.Info("Migration complete: %s", step.Key)
			continue
		}

		// Shape already present; record so the precondition never runs again.
		if _, err := d.Run(ctx, "record_migration",
			`INSERT OR IGNORE INTO migrations (key, applied_at) VALUES (?, ?)`,
			step.Key, time.Now().Unix()); err != nil {
			return fmt.Errorf("record migration %s: %w", step.Key, err)
		}
	}
	return nil
}

// columnExists is the usual migration precondition helper.
func columnExists(ctx context.Context, d *DB, table, column string) (bool, error) {
	var exists bool
	err := d.Get(ctx, "check_column",
		`SELECT COUNT(*) > 0 FROM pragma_table_info(?) WHERE name = ?`,
		table, column).Scan(&exists)
	return exists, err
}

// Migrate runs the migration sets for every store.
func (m *Manager) Migrate(ctx context.Context) error {
	gallerySteps := []Migration{
		{
			// Early deployments created items without cover_path; covers
			// lived only in album_covers.
			Key: "items_add_cover_path",
			Precondition: func(ctx context.Context, d *DB) (bool, error) {
				exists, err := columnExists(ctx, d, "items", "cover_path")
				return !exists, err
			},
			SQL: `ALTER TABLE items ADD COLUMN cover_path TEXT`,
		},
		{
			Key: "items_add_last_viewed_at",
			Precondition: func(ctx context.Context, d *DB) (bool, error) {
				exists, err := columnExists(ctx, d, "items", "last_viewed_at")
				return !exists, err
			},
			SQL: `ALTER TABLE items ADD COLUMN last_viewed_at INTEGER`,
		},
		{
			// FTS maintenance moved into the indexer's batch transaction;
			// the triggers double-wrote rows during INSERT OR REPLACE.
			Key: "drop_items_fts_triggers",
			SQL: `DROP TRIGGER IF EXISTS items_ai;
			      DROP TRIGGER IF EXISTS items_ad;
			      DROP TRIGGER IF EXISTS items_au;`,
		},
		{
			Key: "thumb_status_add_last_checked",
			Precondition: func(ctx context.Context, d *DB) (bool, error) {
				exists, err := columnExists(ctx, d, "thumb_status", "last_checked")
				return !exists, err
			},
			SQL: `ALTER TABLE thumb_status ADD COLUMN last_checked INTEGER NOT NULL DEFAULT 0`,
		},
	}
	if err := m.Gallery.Migrate(ctx, gallerySteps); err != nil {
		return err
	}

	indexSteps := []Migration{
		{
			Key: "index_status_add_last_error",
			Precondition: func(ctx context.Context, d *DB) (bool, error) {
				exists, err := columnExists(ctx, d, "index_status", "last_error")
				return !exists, err
			},
			SQL: `ALTER TABLE index_status ADD COLUMN last_error TEXT`,
		},
	}
	if err := m.Index.Migrate(ctx, indexSteps); err != nil {
		return err
	}

	// settings and history have no versioned steps yet; ensure their
	// migrations tables exist so future steps have a place to record.
	if err := m.Settings.Migrate(ctx, nil); err != nil {
		return err
	}
	return m.History.Migrate(ctx, nil)
}
