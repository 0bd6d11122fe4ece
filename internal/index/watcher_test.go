package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// recorder collects every change delivered by the watcher.
type recorder struct {
	mu      sync.Mutex
	batches [][]Change
}

func (r *recorder) record(changes []Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changes)
}

func (r *recorder) has(kind, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.batches {
		for _, c := range b {
			if c.Path == path && (kind == "" || c.Kind == kind) {
				return true
			}
		}
	}
	return false
}

func startWatch(t *testing.T, root string) *recorder {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rec := &recorder{}
	go Watch(ctx, root, 50*time.Millisecond, logger, rec.record)
	time.Sleep(100 * time.Millisecond)
	return rec
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileReported(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root)

	_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(ChangeCreated, "new.md")
	}, "expected created:new.md")
}

func TestWatcher_IgnoresNonMarkdown(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root)

	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "real.md"), []byte("x"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("", "real.md")
	}, "expected real.md change")
	if rec.has("", "notes.txt") {
		t.Error("non-markdown file should be ignored")
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root)

	subDir := filepath.Join(root, "writing")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("", "writing/deep.md")
	}, "file in new subdir not reported by watcher")
}

func TestWatcher_DeleteReported(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "del.md"), []byte("# Delete Me"), 0o644)
	rec := startWatch(t, root)

	_ = os.Remove(filepath.Join(root, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(ChangeDeleted, "del.md")
	}, "expected deleted:del.md")
}

func TestWatcher_RenameReportsBothPaths(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "old.md"), []byte("# Rename"), 0o644)
	rec := startWatch(t, root)

	_ = os.Rename(filepath.Join(root, "old.md"), filepath.Join(root, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(ChangeDeleted, "old.md") && rec.has(ChangeCreated, "renamed.md")
	}, "rename should report old path deleted and new path created")
}

func TestChangeSet_CoalescesPerPath(t *testing.T) {
	s := newChangeSet()
	s.add(ChangeCreated, "a.md")
	s.add(ChangeUpdated, "a.md")
	s.add(ChangeUpdated, "b.md")
	s.add(ChangeDeleted, "b.md")

	got := s.drain()
	want := []Change{{ChangeCreated, "a.md"}, {ChangeDeleted, "b.md"}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d = %v, want %v", i, got[i], want[i])
		}
	}
	if len(s.drain()) != 0 {
		t.Error("drain should empty the set")
	}
}
