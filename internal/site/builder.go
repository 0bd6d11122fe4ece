package site

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/starford/grove/internal/content"
	"github.com/starford/grove/internal/models"
	"github.com/starford/grove/internal/storage"
)

// Template names looked up in the templates directory.
const (
	IndexTemplate = "index.html"
	NotesTemplate = "notes.html"
	PageTemplate  = "page.html"
)

// CollectionsFile is the machine-readable dump written next to the pages.
const CollectionsFile = "collections.json"

// Meta describes the site as a whole.
type Meta struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PageData is the value every template executes against.
type PageData struct {
	Site  Meta
	Mode  content.Mode
	Data  map[string]any
	Posts []*models.ContentItem
	Notes []*models.ContentItem
	Pages []*models.ContentItem
	// Page is the item being rendered by page.html, nil for listings.
	Page *models.ContentItem
}

// Result summarises one render.
type Result struct {
	Written    []string      `json:"written"`
	Skipped    []string      `json:"skipped,omitempty"`
	// Removed lists outputs of the previous build that this one no longer produced.
	Removed    []string      `json:"removed,omitempty"`
	// Collisions lists items whose output path was already claimed by a
	// listing or an earlier item. Those items are not written.
	Collisions []string      `json:"collisions,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Builder renders collections through the site templates into the output store.
type Builder struct {
	templates storage.Provider
	data      storage.Provider
	output    storage.Provider
	meta      Meta
	loc       *time.Location
	logger    *slog.Logger

	// previous holds the outputs of the last build. Builds must not overlap.
	previous map[string]bool
}

// NewBuilder creates a builder. templates and data may be nil, in which case
// only the collections dump is written.
func NewBuilder(templates, data, output storage.Provider, meta Meta, loc *time.Location, logger *slog.Logger) *Builder {
	return &Builder{
		templates: templates,
		data:      data,
		output:    output,
		meta:      meta,
		loc:       loc,
		logger:    logger,
	}
}

// Output returns the store rendered files are written to.
func (b *Builder) Output() storage.Provider {
	return b.output
}

// Build renders every output for cols. A missing template skips only the
// outputs that need it.
func (b *Builder) Build(ctx context.Context, cols *content.Collections, mode content.Mode) (*Result, error) {
	start := time.Now()
	res := &Result{Written: []string{}}

	tmpl, err := b.parseTemplates()
	if err != nil {
		return nil, err
	}
	data, err := LoadData(b.data)
	if err != nil {
		return nil, err
	}

	base := PageData{
		Site:  b.meta,
		Mode:  mode,
		Data:  data,
		Posts: cols.Posts,
		Notes: cols.Notes,
		Pages: cols.Pages,
	}

	render := func(name, out string, pd PageData) error {
		if tmpl == nil || tmpl.Lookup(name) == nil {
			res.Skipped = append(res.Skipped, out)
			return nil
		}
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, name, pd); err != nil {
			return fmt.Errorf("site: render %s: %w", out, err)
		}
		if err := b.output.Write(out, buf.Bytes()); err != nil {
			return err
		}
		res.Written = append(res.Written, out)
		return nil
	}

	if err := render(IndexTemplate, "index.html", base); err != nil {
		return nil, err
	}
	if err := render(NotesTemplate, "notes/index.html", base); err != nil {
		return nil, err
	}
	// The listings and the dump own their paths even when their template is missing.
	claimed := map[string]string{
		"index.html":       "listing",
		"notes/index.html": "listing",
		CollectionsFile:    "collections",
	}
	for _, it := range cols.Flatten() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := OutputPath(it.URL)
		if owner, ok := claimed[out]; ok {
			b.logger.Warn("output path collision",
				slog.String("path", out),
				slog.String("item", it.Identifier),
				slog.String("owner", owner))
			res.Collisions = append(res.Collisions, out+" ("+it.Identifier+")")
			continue
		}
		claimed[out] = it.Identifier
		pd := base
		pd.Page = it
		if err := render(PageTemplate, out, pd); err != nil {
			return nil, err
		}
	}

	if err := b.writeCollections(cols); err != nil {
		return nil, err
	}
	res.Written = append(res.Written, CollectionsFile)
	if err := b.prune(res); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	b.logger.Info("site rendered",
		slog.Int("written", len(res.Written)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("removed", len(res.Removed)),
		slog.Int("collisions", len(res.Collisions)),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// prune deletes pages written by the previous build and not by this one, so a
// post that became a draft disappears from the preview.
func (b *Builder) prune(res *Result) error {
	current := make(map[string]bool, len(res.Written))
	for _, p := range res.Written {
		current[p] = true
	}
	for p := range b.previous {
		if current[p] {
			continue
		}
		if err := b.output.Delete(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("site: prune: %w", err)
		}
		res.Removed = append(res.Removed, p)
	}
	sort.Strings(res.Removed)
	b.previous = current
	return nil
}

func (b *Builder) parseTemplates() (*template.Template, error) {
	if b.templates == nil {
		return nil, nil
	}
	metas, err := b.templates.Glob("*.html")
	if err != nil {
		return nil, fmt.Errorf("site: templates: %w", err)
	}
	if len(metas) == 0 {
		b.logger.Warn("site: no templates found", slog.String("dir", b.templates.Root()))
		return nil, nil
	}
	root := template.New("").Funcs(FuncMap(b.loc))
	for _, m := range metas {
		src, err := b.templates.Read(m.Path)
		if err != nil {
			return nil, fmt.Errorf("site: templates: %w", err)
		}
		if _, err := root.New(m.Path).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("site: parse %s: %w", m.Path, err)
		}
	}
	return root, nil
}

type collectionsDump struct {
	Posts []*models.ContentItem `json:"posts"`
	Notes []*models.ContentItem `json:"notes"`
	Pages []*models.ContentItem `json:"pages"`
}

func (b *Builder) writeCollections(cols *content.Collections) error {
	dump := collectionsDump{
		Posts: nonNil(cols.Posts),
		Notes: nonNil(cols.Notes),
		Pages: nonNil(cols.Pages),
	}
	raw, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("site: encode collections: %w", err)
	}
	return b.output.Write(CollectionsFile, raw)
}

// OutputPath maps an item URL to the file it is written to. Directory-style
// URLs get an index.html.
func OutputPath(url string) string {
	p := strings.TrimPrefix(path.Clean("/"+url), "/")
	if p == "" {
		return "index.html"
	}
	if strings.HasSuffix(url, "/") || path.Ext(p) == "" {
		return p + "/index.html"
	}
	return p
}

func nonNil(items []*models.ContentItem) []*models.ContentItem {
	if items == nil {
		return []*models.ContentItem{}
	}
	return items
}
