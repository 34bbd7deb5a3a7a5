package database

import (
	"context"
	"testing"
)

func TestMigrateAppliesOnce(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()

	var runs int
	steps := []Migration{
		{
			Key: "add_scratch_table",
			Precondition: func(ctx context.Context, d *DB) (bool, error) {
				runs++
				return true, nil
			},
			SQL: `CREATE TABLE scratch (id INTEGER PRIMARY KEY)`,
		},
	}

	if err := m.Settings.Migrate(ctx, steps); err != nil {
		t.Fatalf("first Migrate() failed: %v", err)
	}
	// Reapplying must skip the recorded step without consulting the
	// precondition; CREATE TABLE would otherwise fail.
	if err := m.Settings.Migrate(ctx, steps); err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}
	if runs != 1 {
		t.Errorf("precondition ran %d times, want 1", runs)
	}

	var count int
	if err := m.Settings.Get(ctx, "test", `SELECT COUNT(*) FROM scratch`).Scan(&count); err != nil {
		t.Fatalf("scratch table missing: %v", err)
	}
}

func TestMigratePreconditionFalseRecordsWithoutRunning(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()

	steps := []Migration{
		{
			Key: "never_needed",
			Precondition: func(ctx context.Context, d *DB) (bool, error) {
				return false, nil
			},
			// Would fail if executed.
			SQL: `ALTER TABLE no_such_table ADD COLUMN x TEXT`,
		},
	}
	if err := m.Settings.Migrate(ctx, steps); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	var recorded int
	err := m.Settings.Get(ctx, "test",
		`SELECT COUNT(*) FROM migrations WHERE key = ?`, "never_needed").Scan(&recorded)
	if err != nil {
		t.Fatal(err)
	}
	if recorded != 1 {
		t.Errorf("recorded = %d, want 1", recorded)
	}
}

func TestColumnExists(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()

	exists, err := columnExists(ctx, m.Gallery, "items", "cover_path")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("columnExists(items, cover_path) = false, want true")
	}

	exists, err = columnExists(ctx, m.Gallery, "items", "no_such_column")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("columnExists(items, no_such_column) = true, want false")
	}
}

func TestManagerMigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()

	// Open already migrated once; a second full pass must be harmless.
	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() rerun failed: %v", err)
	}
}
