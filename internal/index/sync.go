package index

import (
	"log/slog"

	"github.com/starford/grove/internal/content"
	"github.com/starford/grove/internal/models"
)

// SyncStats counts what a Sync changed.
type SyncStats struct {
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Sync brings the index up to date with an assembled build:
//   - new/changed items are upserted
//   - rows for items no longer in any collection are deleted
func Sync(db ItemIndex, cols *content.Collections, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	seen := make(map[string]struct{})
	index := func(collection string, it *models.ContentItem) {
		seen[it.InputPath] = struct{}{}
		if cs, ok := checksums[it.InputPath]; ok && cs == it.Checksum {
			stats.Unchanged++
			return
		}
		if err := db.UpsertItem(RowFromItem(collection, it), it.Body); err != nil {
			logger.Warn("sync: index failed", slog.String("path", it.InputPath), slog.String("error", err.Error()))
			return
		}
		stats.Indexed++
		logger.Debug("sync: indexed", slog.String("path", it.InputPath))
	}

	for _, it := range cols.Posts {
		index(content.CollectionPosts, it)
	}
	content.Walk(cols.Notes, func(it *models.ContentItem) {
		index(content.CollectionNotes, it)
	})
	for _, it := range cols.Pages {
		index(content.CollectionPages, it)
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := seen[p]; ok {
			continue
		}
		if err := db.DeleteItem(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	logger.Info("index synced",
		slog.Int("indexed", stats.Indexed),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("removed", stats.Removed))
	return stats, nil
}

// RowFromItem converts a content item into its index row.
func RowFromItem(collection string, it *models.ContentItem) ItemRow {
	row := ItemRow{
		Path:       it.InputPath,
		Identifier: it.Identifier,
		Collection: collection,
		Parent:     it.Parent,
		Title:      it.Title,
		URL:        it.URL,
		Checksum:   it.Checksum,
		Tags:       it.Tags,
		Published:  it.Published,
		Private:    it.Private,
	}
	if !it.Date.IsZero() {
		d := it.Date.UTC()
		row.Date = &d
	}
	return row
}

// ItemFromRow restores an item from its row. Children, frontmatter and the
// fields the index does not store stay empty.
func ItemFromRow(r ItemRow) *models.ContentItem {
	it := &models.ContentItem{
		Identifier: r.Identifier,
		Parent:     r.Parent,
		InputPath:  r.Path,
		URL:        r.URL,
		Title:      r.Title,
		Tags:       r.Tags,
		Body:       r.Body,
		Checksum:   r.Checksum,
		Visibility: models.Visibility{
			Published: r.Published,
			Private:   r.Private,
		},
	}
	if r.Collection == content.CollectionPosts {
		it.Destination = models.DestinationBlog
	}
	if r.Date != nil {
		it.Date = *r.Date
		it.HasDate = true
	}
	return it
}
