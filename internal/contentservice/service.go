// Package contentservice coordinates content assembly, rendering, indexing and
// auditing, and serves the latest build to the API and MCP layers.
package contentservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/grove/internal/apperr"
	"github.com/starford/grove/internal/checksum"
	"github.com/starford/grove/internal/content"
	"github.com/starford/grove/internal/index"
	"github.com/starford/grove/internal/models"
	"github.com/starford/grove/internal/notify"
	"github.com/starford/grove/internal/site"
)

// ErrNotBuilt is returned by read operations before the first build finished.
var ErrNotBuilt = errors.New("content has not been built yet")

// Build is the outcome of one Rebuild.
type Build struct {
	Collections *content.Collections `json:"-"`
	Audit       *content.AuditReport `json:"-"`
	Site        *site.Result         `json:"site,omitempty"`
	Index       *index.SyncStats     `json:"index,omitempty"`
	Summary     Summary              `json:"summary"`
}

// Summary is the JSON-friendly digest of a build.
type Summary struct {
	// ID is unique per build so preview clients can drop repeated notifications.
	ID         string        `json:"id"`
	Mode       content.Mode  `json:"mode"`
	Posts      int           `json:"posts"`
	NoteRoots  int           `json:"note_roots"`
	Notes      int           `json:"notes"`
	Pages      int           `json:"pages"`
	Orphans    []string      `json:"orphans"`
	Cyclic     []string      `json:"cyclic"`
	Detached   []string      `json:"detached"`
	Duplicates []string      `json:"duplicates"`
	BuiltAt    time.Time     `json:"built_at"`
	Duration   time.Duration `json:"duration"`
}

// ItemDetail is the full representation of one item.
type ItemDetail struct {
	*models.ContentItem
	Collection string `json:"collection"`
	Body       string `json:"body"`
	// Ancestors lists parent identifiers from the root down.
	Ancestors []string `json:"ancestors"`
	ETag      string   `json:"etag"`
}

// Service coordinates the build pipeline.
type Service struct {
	assembler *content.Assembler
	builder   *site.Builder
	db        index.ItemIndex
	notifier  notify.Notifier
	loc       *time.Location
	now       func() time.Time
	onRebuild []func(*Build)
	logger    *slog.Logger

	mu      sync.Mutex // serialises rebuilds
	current atomic.Pointer[Build]
}

// Option customises a Service.
type Option func(*Service)

// WithBuilder renders the site on every rebuild.
func WithBuilder(b *site.Builder) Option {
	return func(s *Service) { s.builder = b }
}

// WithIndex syncs the search index on every rebuild.
func WithIndex(db index.ItemIndex) Option {
	return func(s *Service) { s.db = db }
}

// WithNotifier sends the audit report on every rebuild.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLocation sets the zone audit dates are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithClock overrides the time source of the audit.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRebuildHook registers fn to run after every successful rebuild.
func WithRebuildHook(fn func(*Build)) Option {
	return func(s *Service) { s.onRebuild = append(s.onRebuild, fn) }
}

// New creates a service around an assembler.
func New(assembler *content.Assembler, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		assembler: assembler,
		loc:       time.UTC,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rebuild assembles content and runs every configured stage. The new build
// replaces the current one only when assembly and rendering succeed; index and
// notification failures are logged.
func (s *Service) Rebuild(ctx context.Context) (*Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	cols, err := s.assembler.Assemble(ctx)
	if err != nil {
		return nil, err
	}

	b := &Build{Collections: cols}
	b.Audit = content.Audit(append(append([]*models.ContentItem{}, cols.Writing...), cols.Pages...), s.now())

	if s.builder != nil {
		res, err := s.builder.Build(ctx, cols, s.assembler.Mode())
		if err != nil {
			return nil, fmt.Errorf("contentservice: render: %w", err)
		}
		b.Site = res
	}

	if s.db != nil {
		stats, err := index.Sync(s.db, cols, s.logger)
		if err != nil {
			s.logger.Warn("index sync failed", slog.String("error", err.Error()))
		} else {
			b.Index = &stats
		}
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, notify.AuditSubject, b.Audit.HTML(s.loc)); err != nil {
			s.logger.Warn("audit notification failed", slog.String("error", err.Error()))
		}
	}

	b.Summary = summarise(s.assembler.Mode(), cols)
	b.Summary.ID = uuid.NewString()
	b.Summary.BuiltAt = s.now()
	b.Summary.Duration = time.Since(start)
	s.current.Store(b)

	if err := cols.Tree.Err(); err != nil {
		s.logger.Warn("notes tree has problems", slog.String("error", err.Error()))
	}
	s.logger.Info("build complete",
		slog.String("mode", string(b.Summary.Mode)),
		slog.Int("posts", b.Summary.Posts),
		slog.Int("notes", b.Summary.Notes),
		slog.Int("pages", b.Summary.Pages),
		slog.Duration("duration", b.Summary.Duration))

	for _, fn := range s.onRebuild {
		fn(b)
	}
	return b, nil
}

// Current returns the latest successful build, or nil.
func (s *Service) Current() *Build {
	return s.current.Load()
}

func (s *Service) build() (*Build, error) {
	b := s.current.Load()
	if b == nil {
		return nil, ErrNotBuilt
	}
	return b, nil
}

// Collection returns a collection of the latest build. Notes are tree roots.
// Before the first build it answers from the index left by a previous run.
func (s *Service) Collection(_ context.Context, name string) ([]*models.ContentItem, error) {
	b, err := s.build()
	if errors.Is(err, ErrNotBuilt) {
		return s.indexedCollection(name)
	}
	if err != nil {
		return nil, err
	}
	items, err := b.Collections.Get(name)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.ContentItem{}
	}
	return items, nil
}

// Item returns an item of the latest build by identifier.
func (s *Service) Item(_ context.Context, identifier string) (*ItemDetail, error) {
	b, err := s.build()
	if errors.Is(err, ErrNotBuilt) {
		return s.indexedItem(identifier)
	}
	if err != nil {
		return nil, err
	}
	it, ok := b.Collections.Find(identifier)
	if !ok {
		return nil, fmt.Errorf("contentservice: item %q: %w", identifier, apperr.ErrNotFound)
	}
	return &ItemDetail{
		ContentItem: it,
		Collection:  collectionOf(b.Collections, it),
		Body:        it.Body,
		Ancestors:   ancestors(b.Collections, it),
		ETag:        checksum.Short([]byte(it.Checksum)),
	}, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("contentservice: search index is not configured")
	}
	return s.db.Search(query, limit)
}

// Audit returns the audit report of the latest build.
func (s *Service) Audit(_ context.Context) (*content.AuditReport, error) {
	b, err := s.build()
	if err != nil {
		return nil, err
	}
	return b.Audit, nil
}

// AuditHTML renders the latest audit report in the service zone.
func (s *Service) AuditHTML(ctx context.Context) (string, error) {
	report, err := s.Audit(ctx)
	if err != nil {
		return "", err
	}
	return report.HTML(s.loc), nil
}

func (s *Service) indexedCollection(name string) ([]*models.ContentItem, error) {
	switch name {
	case content.CollectionPosts, content.CollectionNotes, content.CollectionPages:
	default:
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnknownCollection, name)
	}
	if s.db == nil {
		return nil, ErrNotBuilt
	}
	all, err := s.db.ListItems("")
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotBuilt
	}

	items := []*models.ContentItem{}
	for _, row := range all {
		if row.Collection == name {
			items = append(items, index.ItemFromRow(row))
		}
	}
	switch name {
	case content.CollectionPosts:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Date.After(items[j].Date) })
	case content.CollectionNotes:
		// Rows only hold notes that were in the tree, so every parent resolves.
		items = content.BuildTree(items)
	}
	return items, nil
}

func (s *Service) indexedItem(identifier string) (*ItemDetail, error) {
	if s.db == nil {
		return nil, ErrNotBuilt
	}
	row, err := s.db.GetItem(identifier)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("contentservice: item %q: %w", identifier, ErrNotBuilt)
	}
	if err != nil {
		return nil, err
	}
	return &ItemDetail{
		ContentItem: index.ItemFromRow(*row),
		Collection:  row.Collection,
		Body:        row.Body,
		Ancestors:   []string{},
		ETag:        checksum.Short([]byte(row.Checksum)),
	}, nil
}

func summarise(mode content.Mode, cols *content.Collections) Summary {
	notes := 0
	content.Walk(cols.Notes, func(*models.ContentItem) { notes++ })
	return Summary{
		Mode:       mode,
		Posts:      len(cols.Posts),
		NoteRoots:  len(cols.Notes),
		Notes:      notes,
		Pages:      len(cols.Pages),
		Orphans:    identifiers(cols.Tree.Orphans),
		Cyclic:     identifiers(cols.Tree.Cyclic),
		Detached:   identifiers(cols.Tree.Detached),
		Duplicates: nonNil(cols.Tree.Duplicates),
	}
}

func collectionOf(cols *content.Collections, it *models.ContentItem) string {
	for _, p := range cols.Posts {
		if p == it {
			return content.CollectionPosts
		}
	}
	for _, p := range cols.Pages {
		if p == it {
			return content.CollectionPages
		}
	}
	return content.CollectionNotes
}

// ancestors walks Parent references up the notes tree. Items outside the tree
// have none.
func ancestors(cols *content.Collections, it *models.ContentItem) []string {
	out := []string{}
	notes := map[string]*models.ContentItem{}
	inTree := false
	content.Walk(cols.Notes, func(n *models.ContentItem) {
		if n == it {
			inTree = true
		}
		if key := content.NormalizeIdentifier(n.Identifier); notes[key] == nil {
			notes[key] = n
		}
	})
	if !inTree {
		return out
	}
	seen := map[*models.ContentItem]bool{it: true}
	for cur := it; cur.Parent != ""; {
		parent, ok := notes[content.NormalizeIdentifier(cur.Parent)]
		if !ok || seen[parent] {
			break
		}
		seen[parent] = true
		out = append([]string{parent.Identifier}, out...)
		cur = parent
	}
	return out
}

func identifiers(items []*models.ContentItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Identifier)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
