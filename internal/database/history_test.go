package database

import (
	"context"
	"testing"
)

func TestTouchViewTimesChain(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()

	chain := []string{"a/b/c.jpg", "a/b", "a", ""}
	if err := m.TouchViewTimes(ctx, "user-1", chain, 1000); err != nil {
		t.Fatalf("TouchViewTimes() failed: %v", err)
	}

	viewed, err := m.LastViewedForPaths(ctx, "user-1", chain)
	if err != nil {
		t.Fatalf("LastViewedForPaths() failed: %v", err)
	}
	for _, p := range chain {
		if viewed[p] != 1000 {
			t.Errorf("viewed[%q] = %d, want 1000", p, viewed[p])
		}
	}

	// A later view of a sibling updates the shared ancestors only.
	if err := m.TouchViewTimes(ctx, "user-1", []string{"a/d.jpg", "a", ""}, 2000); err != nil {
		t.Fatalf("second TouchViewTimes() failed: %v", err)
	}
	viewed, err = m.LastViewedForPaths(ctx, "user-1", []string{"a", "a/b", "a/d.jpg"})
	if err != nil {
		t.Fatalf("LastViewedForPaths() failed: %v", err)
	}
	if viewed["a"] != 2000 {
		t.Errorf("ancestor a = %d, want 2000", viewed["a"])
	}
	if viewed["a/b"] != 1000 {
		t.Errorf("untouched branch a/b = %d, want 1000", viewed["a/b"])
	}
}

func TestViewHistoryIsPerUser(t *testing.T) {
	t.Parallel()
	m := setupTestManager(t)
	ctx := context.Background()

	if err := m.TouchViewTimes(ctx, "alice", []string{"x"}, 111); err != nil {
		t.Fatal(err)
	}
	if err := m.TouchViewTimes(ctx, "bob", []string{"x"}, 222); err != nil {
		t.Fatal(err)
	}

	alice, err := m.LastViewedForPaths(ctx, "alice", []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	bob, err := m.LastViewedForPaths(ctx, "bob", []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if alice["x"] != 111 || bob["x"] != 222 {
		t.Errorf("alice = %d, bob = %d; want 111, 222", alice["x"], bob["x"])
	}
}
