package content

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/grove/internal/apperr"
	"github.com/starford/grove/internal/models"
)

// Collection names.
const (
	CollectionPosts = "posts"
	CollectionNotes = "notes"
	CollectionPages = "pages"
)

// Globs holds the doublestar patterns each collection is read from.
type Globs struct {
	Writing []string
	Pages   []string
}

// Collections is the assembled content of one build.
type Collections struct {
	// Posts are newest first.
	Posts []*models.ContentItem
	// Notes are the roots of the notes tree.
	Notes []*models.ContentItem
	Pages []*models.ContentItem
	// Writing is every writing file that parsed, before any visibility filter.
	Writing []*models.ContentItem
	Tree    *TreeReport
}

// Get returns a collection by name.
func (c *Collections) Get(name string) ([]*models.ContentItem, error) {
	switch name {
	case CollectionPosts:
		return c.Posts, nil
	case CollectionNotes:
		return c.Notes, nil
	case CollectionPages:
		return c.Pages, nil
	default:
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnknownCollection, name)
	}
}

// Find looks an item up by identifier across posts, the notes tree and pages.
func (c *Collections) Find(identifier string) (*models.ContentItem, bool) {
	key := NormalizeIdentifier(identifier)
	var found *models.ContentItem
	Walk(c.Notes, func(it *models.ContentItem) {
		if found == nil && NormalizeIdentifier(it.Identifier) == key {
			found = it
		}
	})
	if found != nil {
		return found, true
	}
	for _, list := range [][]*models.ContentItem{c.Posts, c.Pages} {
		for _, it := range list {
			if NormalizeIdentifier(it.Identifier) == key {
				return it, true
			}
		}
	}
	return nil, false
}

// Flatten returns every item of the build once: posts, notes depth-first, pages.
func (c *Collections) Flatten() []*models.ContentItem {
	out := make([]*models.ContentItem, 0, len(c.Posts)+len(c.Pages))
	out = append(out, c.Posts...)
	Walk(c.Notes, func(it *models.ContentItem) { out = append(out, it) })
	out = append(out, c.Pages...)
	return out
}

// Walk visits roots and their descendants depth-first in order.
func Walk(roots []*models.ContentItem, fn func(*models.ContentItem)) {
	for _, r := range roots {
		fn(r)
		Walk(r.Children, fn)
	}
}

// Assembler loads content and builds the posts, notes and pages collections.
type Assembler struct {
	loader *Loader
	tree   *TreeBuilder
	globs  Globs
	mode   Mode
	now    func() time.Time
	logger *slog.Logger
}

// AssemblerOption customises an Assembler.
type AssemblerOption func(*Assembler)

// WithClock overrides the time source used by the scheduled filter.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		a.now = now
	}
}

// NewAssembler creates an assembler for the given mode.
func NewAssembler(loader *Loader, globs Globs, mode Mode, logger *slog.Logger, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		loader: loader,
		tree:   NewTreeBuilder(logger),
		globs:  globs,
		mode:   mode,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mode returns the build mode the assembler filters for.
func (a *Assembler) Mode() Mode {
	return a.mode
}

// Assemble loads content and returns the filtered collections.
func (a *Assembler) Assemble(ctx context.Context) (*Collections, error) {
	writing, err := a.loader.Load(ctx, a.globs.Writing...)
	if err != nil {
		return nil, fmt.Errorf("content: load writing: %w", err)
	}
	pages, err := a.loader.Load(ctx, a.globs.Pages...)
	if err != nil {
		return nil, fmt.Errorf("content: load pages: %w", err)
	}

	loaded := writing
	writing = RemoveUndated(writing, a.mode)

	var posts, notes []*models.ContentItem
	for _, it := range writing {
		if it.IsPost() {
			posts = append(posts, it)
		} else {
			notes = append(notes, it)
		}
	}

	sortByDate(posts)
	reverse(posts)
	posts = RemoveScheduled(RemoveDrafts(posts, a.mode), a.mode, a.now())

	sort.SliceStable(notes, func(i, j int) bool { return notes[i].InputPath < notes[j].InputPath })
	// Private notes are removed before nesting so their own children become
	// orphans, and again afterwards for any private root that survived.
	report := a.tree.Build(RemovePrivate(notes, a.mode))
	roots := RemovePrivate(report.Roots, a.mode)

	a.logger.Info("collections assembled",
		slog.String("mode", string(a.mode)),
		slog.Int("posts", len(posts)),
		slog.Int("note_roots", len(roots)),
		slog.Int("pages", len(pages)),
		slog.Int("orphans", len(report.Orphans)),
		slog.Int("cyclic", len(report.Cyclic)))

	return &Collections{
		Posts:   posts,
		Notes:   roots,
		Pages:   pages,
		Writing: loaded,
		Tree:    report,
	}, nil
}

// RemoveUndated drops items without a frontmatter date in production; those
// are unfinished drafts that must not get a permalink.
func RemoveUndated(items []*models.ContentItem, mode Mode) []*models.ContentItem {
	if !mode.Enforced() {
		return items
	}
	return keep(items, func(it *models.ContentItem) bool { return it.HasDate })
}

func sortByDate(items []*models.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].InputPath < items[j].InputPath
	})
}

func reverse(items []*models.ContentItem) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
