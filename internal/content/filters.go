package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/grove/internal/models"
)

// Mode selects whether visibility rules are enforced.
type Mode string

const (
	// ModeProduction enforces the draft, scheduled and private filters.
	ModeProduction Mode = "production"
	// ModePreview keeps every item, for local serve/watch builds.
	ModePreview Mode = "preview"
)

// ParseMode converts a config or flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeProduction:
		return ModeProduction, nil
	case ModePreview, "":
		return ModePreview, nil
	default:
		return "", fmt.Errorf("content: unknown build mode %q", s)
	}
}

// Enforced reports whether filters drop anything in this mode.
func (m Mode) Enforced() bool {
	return m == ModeProduction
}

// keep returns the items for which pred holds, in order, as a new slice.
func keep(items []*models.ContentItem, pred func(*models.ContentItem) bool) []*models.ContentItem {
	out := make([]*models.ContentItem, 0, len(items))
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// RemoveDrafts drops unpublished items in production.
func RemoveDrafts(items []*models.ContentItem, mode Mode) []*models.ContentItem {
	if !mode.Enforced() {
		return items
	}
	return keep(items, func(it *models.ContentItem) bool { return it.Published })
}

// RemoveScheduled drops items dated after now in production.
func RemoveScheduled(items []*models.ContentItem, mode Mode, now time.Time) []*models.ContentItem {
	if !mode.Enforced() {
		return items
	}
	return keep(items, func(it *models.ContentItem) bool { return !it.Date.After(now) })
}

// RemovePrivate drops private items in production.
func RemovePrivate(items []*models.ContentItem, mode Mode) []*models.ContentItem {
	if !mode.Enforced() {
		return items
	}
	return keep(items, func(it *models.ContentItem) bool { return !it.Private })
}
