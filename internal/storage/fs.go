package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/starford/grove/internal/models"
)

// ErrOutsideRoot is returned for paths that are absolute or climb out of the root.
var ErrOutsideRoot = errors.New("storage: path outside root")

// FS implements Provider on the local file system. Access goes through an
// os.Root, so symlinks and ".." cannot reach files outside the directory.
type FS struct {
	dir  string
	root *os.Root
}

// NewFS opens an existing directory.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open root: %w", err)
	}
	return &FS{dir: abs, root: root}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string {
	return f.dir
}

// Close releases the root directory handle.
func (f *FS) Close() error {
	return f.root.Close()
}

// local validates a slash path and converts it for os.Root.
func local(p string) (string, error) {
	name := filepath.FromSlash(path.Clean(p))
	if p == "" || !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, p)
	}
	return name, nil
}

// Glob matches doublestar patterns such as "writing/**/*.md". A file matched
// by several patterns is returned once.
func (f *FS) Glob(patterns ...string) ([]models.ContentMetadata, error) {
	fsys := f.root.FS()
	seen := make(map[string]bool)
	var out []models.ContentMetadata
	for _, pattern := range patterns {
		err := doublestar.GlobWalk(fsys, pattern, func(p string, d fs.DirEntry) error {
			if d.IsDir() || seen[p] {
				return nil
			}
			seen[p] = true
			info, err := d.Info()
			if err != nil {
				return err
			}
			out = append(out, models.ContentMetadata{Path: p, UpdatedAt: info.ModTime()})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("storage: glob %q: %w", pattern, err)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read returns the raw bytes of a file.
func (f *FS) Read(p string) ([]byte, error) {
	name, err := local(p)
	if err != nil {
		return nil, err
	}
	data, err := f.root.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// Write stages content in a hidden sibling file, syncs it and renames it over p,
// so readers such as the preview server never see a partial page.
func (f *FS) Write(p string, content []byte) error {
	name, err := local(p)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := f.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir %s: %w", dir, err)
		}
	}

	tmpName := filepath.Join(filepath.Dir(name), ".grove-tmp-"+uuid.NewString())
	tmp, err := f.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = f.root.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write %s: %w", p, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", p, err)
	}
	if err := f.root.Rename(tmpName, name); err != nil {
		return fmt.Errorf("storage: rename %s: %w", p, err)
	}
	committed = true
	return nil
}

// Delete removes a file. Directories left empty are kept.
func (f *FS) Delete(p string) error {
	name, err := local(p)
	if err != nil {
		return err
	}
	if name == "." {
		return fmt.Errorf("storage: refusing to delete root")
	}
	if err := f.root.Remove(name); err != nil {
		return fmt.Errorf("storage: delete %s: %w", p, err)
	}
	return nil
}
