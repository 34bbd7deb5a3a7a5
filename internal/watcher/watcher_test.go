package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-gallery/internal/indexer"
	"media-gallery/internal/relpath"
)

type fakeApplier struct {
	mu       sync.Mutex
	batches  [][]indexer.Change
	rebuilds []string
}

func (f *fakeApplier) ApplyChanges(_ context.Context, changes []indexer.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]indexer.Change, len(changes))
	copy(cp, changes)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeApplier) TriggerRebuild(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilds = append(f.rebuilds, reason)
}

func (f *fakeApplier) allChanges() []indexer.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []indexer.Change
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func (f *fakeApplier) rebuildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rebuilds)
}

type fakeVideoQueue struct {
	mu    sync.Mutex
	paths []string
}

func (q *fakeVideoQueue) Enqueue(rel relpath.Path) {
	q.mu.Lock()
	q.paths = append(q.paths, rel.String())
	q.mu.Unlock()
}

func (q *fakeVideoQueue) queued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.paths...)
}

func mustRel(t *testing.T, s string) relpath.Path {
	t.Helper()
	rel, err := relpath.New(s)
	if err != nil {
		t.Fatalf("relpath.New(%q): %v", s, err)
	}
	return rel
}

func mustWriteFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestConsolidate(t *testing.T) {
	t.Parallel()

	ev := func(typ indexer.ChangeType, path, hash string) rawEvent {
		rel, err := relpath.New(path)
		if err != nil {
			t.Fatalf("relpath.New(%q): %v", path, err)
		}
		return rawEvent{typ: typ, rel: rel, hash: hash}
	}

	tests := []struct {
		name   string
		events []rawEvent
		want   []indexer.Change
	}{
		{
			name:   "add then unlink cancels",
			events: []rawEvent{ev(indexer.ChangeAdd, "a.jpg", "h1"), ev(indexer.ChangeUnlink, "a.jpg", "")},
			want:   nil,
		},
		{
			name:   "unlink then add becomes update",
			events: []rawEvent{ev(indexer.ChangeUnlink, "a.jpg", ""), ev(indexer.ChangeAdd, "a.jpg", "h1")},
			want:   []indexer.Change{{Type: indexer.ChangeUpdate, Path: "a.jpg"}},
		},
		{
			name:   "duplicate adds with equal content collapse",
			events: []rawEvent{ev(indexer.ChangeAdd, "a.jpg", "h1"), ev(indexer.ChangeAdd, "a.jpg", "h1")},
			want:   []indexer.Change{{Type: indexer.ChangeAdd, Path: "a.jpg"}},
		},
		{
			name:   "duplicate adds with changed content become update",
			events: []rawEvent{ev(indexer.ChangeAdd, "a.jpg", "h1"), ev(indexer.ChangeAdd, "a.jpg", "h2")},
			want:   []indexer.Change{{Type: indexer.ChangeUpdate, Path: "a.jpg"}},
		},
		{
			name:   "dir add then dir unlink cancels",
			events: []rawEvent{ev(indexer.ChangeAddDir, "album", ""), ev(indexer.ChangeUnlinkDir, "album", "")},
			want:   nil,
		},
		{
			name: "canceled pair revived by later add",
			events: []rawEvent{
				ev(indexer.ChangeAdd, "a.jpg", "h1"),
				ev(indexer.ChangeUnlink, "a.jpg", ""),
				ev(indexer.ChangeAdd, "a.jpg", "h2"),
			},
			want: []indexer.Change{{Type: indexer.ChangeAdd, Path: "a.jpg"}},
		},
		{
			name: "add followed by write collapses to update",
			events: []rawEvent{
				ev(indexer.ChangeAdd, "a.jpg", "h1"),
				ev(indexer.ChangeUpdate, "a.jpg", ""),
			},
			want: []indexer.Change{{Type: indexer.ChangeUpdate, Path: "a.jpg"}},
		},
		{
			name: "first-seen order is preserved",
			events: []rawEvent{
				ev(indexer.ChangeAdd, "b.jpg", "h1"),
				ev(indexer.ChangeAdd, "a.jpg", "h2"),
				ev(indexer.ChangeUpdate, "b.jpg", ""),
			},
			want: []indexer.Change{
				{Type: indexer.ChangeUpdate, Path: "b.jpg"},
				{Type: indexer.ChangeAdd, Path: "a.jpg"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := consolidate(tc.events)
			if len(got) != len(tc.want) {
				t.Fatalf("consolidate() = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("change %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	a1 := filepath.Join(dir, "a1.jpg")
	a2 := filepath.Join(dir, "a2.jpg")
	b := filepath.Join(dir, "b.jpg")
	for path, data := range map[string]string{a1: "same bytes", a2: "same bytes", b: "different"} {
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if contentHash(a1) == "" || contentHash(a1) != contentHash(a2) {
		t.Error("identical files should hash identically")
	}
	if contentHash(a1) == contentHash(b) {
		t.Error("different files should hash differently")
	}
	if got := contentHash(filepath.Join(dir, "missing.jpg")); got != "" {
		t.Errorf("missing file hash = %q, want empty", got)
	}
}

func TestDebounceDelay(t *testing.T) {
	t.Parallel()

	base := 5 * time.Second
	tests := []struct {
		backlog int
		want    time.Duration
	}{
		{0, base},
		{500, 10 * time.Second},
		{2500, 30 * time.Second},
		{100000, 30 * time.Second},
	}
	for _, tc := range tests {
		if got := debounceDelay(base, tc.backlog); got != tc.want {
			t.Errorf("debounceDelay(%v, %d) = %v, want %v", base, tc.backlog, got, tc.want)
		}
	}
}

func TestCollectSettledWaitsForStableWrites(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w := New(Config{Root: root, Stabilization: 50 * time.Millisecond}, &fakeApplier{}, nil)

	path := filepath.Join(root, "a.jpg")
	mustWriteFile(t, path, "first")
	w.trackFile(indexer.ChangeAdd, mustRel(t, "a.jpg"))

	if got := w.collectSettled(); len(got) != 0 {
		t.Fatalf("first pass should only record the baseline, got %v", got)
	}

	// The file keeps growing, which must push stability out.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(" more"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if got := w.collectSettled(); len(got) != 0 {
		t.Fatalf("grown file should not settle, got %v", got)
	}

	time.Sleep(60 * time.Millisecond)
	got := w.collectSettled()
	if len(got) != 1 || got[0].typ != indexer.ChangeAdd || got[0].rel.String() != "a.jpg" {
		t.Fatalf("settled events = %v, want one add of a.jpg", got)
	}
	if got[0].hash == "" {
		t.Error("promoted add should carry a content hash")
	}
}

func TestCollectSettledDropsVanishedFiles(t *testing.T) {
	t.Parallel()

	w := New(Config{Root: t.TempDir(), Stabilization: time.Millisecond}, &fakeApplier{}, nil)
	w.trackFile(indexer.ChangeAdd, mustRel(t, "ghost.jpg"))

	if got := w.collectSettled(); len(got) != 0 {
		t.Fatalf("vanished file should not settle, got %v", got)
	}
	w.settleMu.Lock()
	n := len(w.settling)
	w.settleMu.Unlock()
	if n != 0 {
		t.Errorf("settling map should be empty, has %d entries", n)
	}
}

func TestDiffSnapshotsReportsSubtreeOnce(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	w := New(Config{Root: t.TempDir(), Mode: ModePoll}, applier, nil)

	snap := map[string]pollEntry{
		"trips":            {isDir: true},
		"trips/rome":       {isDir: true},
		"trips/rome/a.jpg": {mtime: 1000},
		"keep.jpg":         {mtime: 1000},
	}
	cur := map[string]pollEntry{
		"trips":    {isDir: true},
		"keep.jpg": {mtime: 1000},
	}

	w.diffSnapshots(snap, cur, time.Now())
	w.flush()

	changes := applier.allChanges()
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1: %v", len(changes), changes)
	}
	if changes[0].Type != indexer.ChangeUnlinkDir || changes[0].Path != "trips/rome" {
		t.Errorf("change = %+v, want unlinkDir of trips/rome", changes[0])
	}
	if _, ok := snap["trips/rome/a.jpg"]; ok {
		t.Error("removed entries should leave the snapshot")
	}
}

func TestDiffSnapshotsHoldsFreshFiles(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	w := New(Config{Root: t.TempDir(), Mode: ModePoll, Stabilization: time.Hour}, applier, nil)

	now := time.Now()
	snap := map[string]pollEntry{}
	cur := map[string]pollEntry{"fresh.jpg": {mtime: now.UnixMilli()}}

	w.diffSnapshots(snap, cur, now)
	if len(snap) != 0 {
		t.Fatal("file younger than the stabilization window should be held back")
	}

	w.diffSnapshots(snap, cur, now.Add(2*time.Hour))
	w.flush()

	changes := applier.allChanges()
	if len(changes) != 1 || changes[0].Type != indexer.ChangeAdd || changes[0].Path != "fresh.jpg" {
		t.Fatalf("changes = %v, want a single add of fresh.jpg", changes)
	}
}

func TestPollReportsTreeChanges(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	applier := &fakeApplier{}
	videos := &fakeVideoQueue{}
	w := New(Config{
		Root:             root,
		Mode:             ModePoll,
		PollInterval:     50 * time.Millisecond,
		Stabilization:    time.Millisecond,
		Debounce:         30 * time.Millisecond,
		RebuildThreshold: 1000,
	}, applier, videos)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	mustWriteFile(t, filepath.Join(root, "beach", "a.jpg"), "photo")
	mustWriteFile(t, filepath.Join(root, "beach", "clip.mp4"), "video")

	waitFor(t, 5*time.Second, func() bool { return len(applier.allChanges()) >= 3 })

	got := map[string]indexer.ChangeType{}
	for _, ch := range applier.allChanges() {
		got[ch.Path] = ch.Type
	}
	if got["beach"] != indexer.ChangeAddDir {
		t.Errorf("beach = %v, want addDir", got["beach"])
	}
	if got["beach/a.jpg"] != indexer.ChangeAdd {
		t.Errorf("beach/a.jpg = %v, want add", got["beach/a.jpg"])
	}
	if got["beach/clip.mp4"] != indexer.ChangeAdd {
		t.Errorf("beach/clip.mp4 = %v, want add", got["beach/clip.mp4"])
	}

	waitFor(t, time.Second, func() bool { return len(videos.queued()) == 1 })
	if q := videos.queued(); q[0] != "beach/clip.mp4" {
		t.Errorf("video queue = %v, want [beach/clip.mp4]", q)
	}
}

func TestPollOversizedBatchTriggersRebuild(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	applier := &fakeApplier{}
	w := New(Config{
		Root:             root,
		Mode:             ModePoll,
		PollInterval:     50 * time.Millisecond,
		Stabilization:    time.Millisecond,
		Debounce:         150 * time.Millisecond,
		RebuildThreshold: 2,
	}, applier, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		mustWriteFile(t, filepath.Join(root, name), name)
	}

	waitFor(t, 5*time.Second, func() bool { return applier.rebuildCount() > 0 })
	if n := len(applier.allChanges()); n != 0 {
		t.Errorf("oversized batch should rebuild, not apply, got %d applied changes", n)
	}
}

func TestUnlinkRemovesMirroredThumb(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	thumbs := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "beach", "a.jpg"), "photo")
	mustWriteFile(t, filepath.Join(thumbs, "beach", "a.webp"), "thumb")

	applier := &fakeApplier{}
	w := New(Config{
		Root:             root,
		ThumbsDir:        thumbs,
		Mode:             ModePoll,
		PollInterval:     50 * time.Millisecond,
		Stabilization:    time.Millisecond,
		Debounce:         30 * time.Millisecond,
		RebuildThreshold: 1000,
	}, applier, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	if err := os.Remove(filepath.Join(root, "beach", "a.jpg")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool {
		for _, ch := range applier.allChanges() {
			if ch.Type == indexer.ChangeUnlink && ch.Path == "beach/a.jpg" {
				return true
			}
		}
		return false
	})

	if _, err := os.Stat(filepath.Join(thumbs, "beach", "a.webp")); !os.IsNotExist(err) {
		t.Errorf("mirrored thumbnail should be deleted, stat err = %v", err)
	}
}

func TestNotifyModeReportsCreations(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	applier := &fakeApplier{}
	w := New(Config{
		Root:             root,
		Mode:             ModeNotify,
		PollInterval:     50 * time.Millisecond,
		Stabilization:    50 * time.Millisecond,
		Debounce:         50 * time.Millisecond,
		RebuildThreshold: 1000,
	}, applier, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	mustWriteFile(t, filepath.Join(root, "beach", "a.jpg"), "photo")

	waitFor(t, 10*time.Second, func() bool {
		got := map[string]indexer.ChangeType{}
		for _, ch := range applier.allChanges() {
			got[ch.Path] = ch.Type
		}
		return got["beach"] == indexer.ChangeAddDir && got["beach/a.jpg"] == indexer.ChangeAdd
	})
}
