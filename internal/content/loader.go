package content

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/grove/internal/checksum"
	"github.com/starford/grove/internal/models"
	"github.com/starford/grove/internal/parser"
	"github.com/starford/grove/internal/storage"
)

// Loader reads Markdown files from the content root and turns them into items.
type Loader struct {
	store  storage.Provider
	logger *slog.Logger
}

// NewLoader creates a loader over store.
func NewLoader(store storage.Provider, logger *slog.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// Load returns one item per file matching any of the patterns, ordered by path.
// Files that cannot be read or parsed are logged and skipped.
func (l *Loader) Load(ctx context.Context, patterns ...string) ([]*models.ContentItem, error) {
	metas, err := l.store.Glob(patterns...)
	if err != nil {
		return nil, err
	}

	items := make([]*models.ContentItem, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := l.store.Read(m.Path)
		if err != nil {
			l.logger.Warn("load: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res, err := parser.Parse(data)
		if err != nil {
			l.logger.Warn("load: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		items = append(items, newItem(m, res, checksum.Sum(data)))
	}
	l.logger.Debug("load: done", slog.Int("items", len(items)), slog.Any("patterns", patterns))
	return items, nil
}

func newItem(m models.ContentMetadata, res *parser.Result, sum string) *models.ContentItem {
	slug := FileSlug(m.Path)
	item := &models.ContentItem{
		Identifier:  slug,
		Parent:      res.Meta.Parent,
		InputPath:   m.Path,
		URL:         itemURL(slug, res.Meta.Permalink),
		Title:       res.Title,
		Description: res.Meta.Description,
		Tags:        res.Tags,
		Destination: res.Meta.Destination,
		Category:    res.Meta.Category,
		Status:      res.Meta.Status,
		Body:        res.Body,
		Frontmatter: res.Frontmatter,
		Checksum:    sum,
		HasTitle:    res.Meta.HasTitle,
		Visibility: models.Visibility{
			Published: res.Meta.Published,
			Private:   res.Meta.Private,
			Date:      res.Meta.Date,
			HasDate:   res.Meta.HasDate,
		},
	}
	if !item.HasDate {
		item.Date = m.UpdatedAt
	}
	return item
}

// FileSlug derives the identifier from a content path: the file name without
// its extension, or the directory name for index files.
func FileSlug(p string) string {
	base := path.Base(p)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "index" {
		if dir := path.Base(path.Dir(p)); dir != "." && dir != "/" {
			return dir
		}
	}
	return stem
}

func itemURL(slug, permalink string) string {
	if permalink != "" {
		if !strings.HasPrefix(permalink, "/") {
			permalink = "/" + permalink
		}
		return permalink
	}
	return "/" + slug + "/"
}
