package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change kinds reported by Watch.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Change is one content file event. Path is slash-separated and relative to the watched root.
type Change struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// ChangeCallback is called once per quiet period with every change collected during it.
type ChangeCallback func(changes []Change)

// DefaultDebounce is the quiet period used when Watch is given a non-positive debounce.
const DefaultDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on root and reports Markdown changes until
// ctx is cancelled. Events are coalesced: cb runs after debounce has passed
// without further events, so an editor save that touches a file several times
// triggers a single rebuild.
//
// New directories created at runtime are automatically added to the watch
// list and the Markdown files already inside them are reported as created.
// fsnotify reports a rename on the old path only; it is reported as a
// deletion and the new path arrives as a separate create.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, cb ChangeCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := newChangeSet()
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			changes := pending.drain()
			if len(changes) > 0 && cb != nil {
				logger.Debug("watcher: flushing", slog.Int("changes", len(changes)))
				cb(changes)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					for _, rel := range markdownUnder(root, absPath) {
						pending.add(ChangeCreated, rel)
					}
					schedule()
					continue
				}
			}

			// Only content files from here on.
			if !strings.HasSuffix(absPath, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&fsnotify.Create != 0:
				pending.add(ChangeCreated, rel)
			case ev.Op&fsnotify.Write != 0:
				pending.add(ChangeUpdated, rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				pending.add(ChangeDeleted, rel)
			default:
				continue
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// changeSet keeps one change per path in first-seen order.
type changeSet struct {
	order []string
	kinds map[string]string
}

func newChangeSet() *changeSet {
	return &changeSet{kinds: make(map[string]string)}
}

func (s *changeSet) add(kind, path string) {
	prev, ok := s.kinds[path]
	if !ok {
		s.order = append(s.order, path)
		s.kinds[path] = kind
		return
	}
	// A write right after a create is still a new file.
	if prev == ChangeCreated && kind == ChangeUpdated {
		return
	}
	s.kinds[path] = kind
}

func (s *changeSet) drain() []Change {
	out := make([]Change, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, Change{Kind: s.kinds[p], Path: p})
	}
	s.order = nil
	s.kinds = make(map[string]string)
	return out
}

// markdownUnder lists .md files in a newly created directory, relative to root.
func markdownUnder(root, dirPath string) []string {
	var out []string
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
