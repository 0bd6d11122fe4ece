// Package content loads publishable items, applies visibility rules and assembles
// the collections the site is rendered from.
package content

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/grove/internal/apperr"
	"github.com/starford/grove/internal/models"
)

// TreeError describes one item the tree builder could not place.
// It unwraps to one of the apperr tree sentinels.
type TreeError struct {
	Kind       error
	Identifier string
	Parent     string
}

func (e *TreeError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("content: %s: %v", e.Identifier, e.Kind)
	}
	return fmt.Sprintf("content: %s: %v (parent %q)", e.Identifier, e.Kind, e.Parent)
}

func (e *TreeError) Unwrap() error { return e.Kind }

// TreeReport is the outcome of one tree build.
type TreeReport struct {
	// Roots are the parentless items, each with Children populated.
	Roots []*models.ContentItem
	// Orphans declared a parent that is not in the collection.
	Orphans []*models.ContentItem
	// Cyclic items sit on a parent chain that loops back to themselves.
	Cyclic []*models.ContentItem
	// Detached items resolved their parent, but an ancestor was dropped.
	Detached []*models.ContentItem
	// Duplicates lists normalized identifiers shared by more than one item.
	Duplicates []string
	Errors     []error
}

// Err joins every diagnostic into one error, or returns nil when the build was clean.
func (r *TreeReport) Err() error {
	return errors.Join(r.Errors...)
}

// TreeBuilder nests items under their parents.
type TreeBuilder struct {
	logger *slog.Logger
}

// NewTreeBuilder returns a builder that reports diagnostics to logger.
func NewTreeBuilder(logger *slog.Logger) *TreeBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &TreeBuilder{logger: logger}
}

// BuildTree nests items under their parents and returns the roots.
// Diagnostics go to the default logger.
func BuildTree(items []*models.ContentItem) []*models.ContentItem {
	return NewTreeBuilder(nil).Build(items).Roots
}

// NormalizeIdentifier is the key used for parent lookups.
func NormalizeIdentifier(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Build resets every item's Children, attaches each child to its parent in input
// order and returns the roots together with every item it had to drop.
func (b *TreeBuilder) Build(items []*models.ContentItem) *TreeReport {
	report := &TreeReport{Roots: []*models.ContentItem{}}

	index := make(map[string]*models.ContentItem, len(items))
	for _, item := range items {
		item.Children = []*models.ContentItem{}
		key := NormalizeIdentifier(item.Identifier)
		if _, dup := index[key]; dup {
			b.logger.Warn("duplicate identifier, later item wins parent lookups",
				slog.String("identifier", key),
				slog.String("input_path", item.InputPath))
			report.Duplicates = append(report.Duplicates, key)
			report.Errors = append(report.Errors, &TreeError{Kind: apperr.ErrDuplicateIdentifier, Identifier: item.Identifier})
		}
		index[key] = item
	}

	parentOf := func(item *models.ContentItem) *models.ContentItem {
		if item.Parent == "" {
			return nil
		}
		return index[NormalizeIdentifier(item.Parent)]
	}

	cyclic := findCycles(items, parentOf)

	for _, item := range items {
		if item.Parent == "" {
			report.Roots = append(report.Roots, item)
			continue
		}
		if _, ok := cyclic[item]; ok {
			b.logger.Warn("parent chain loops back to item",
				slog.String("identifier", item.Identifier),
				slog.String("parent", item.Parent))
			report.Cyclic = append(report.Cyclic, item)
			report.Errors = append(report.Errors, &TreeError{Kind: apperr.ErrCycle, Identifier: item.Identifier, Parent: item.Parent})
			continue
		}
		parent := parentOf(item)
		if parent == nil {
			b.logger.Warn("tree does not contain "+item.Parent,
				slog.String("identifier", item.Identifier))
			report.Orphans = append(report.Orphans, item)
			report.Errors = append(report.Errors, &TreeError{Kind: apperr.ErrUnresolvedParent, Identifier: item.Identifier, Parent: item.Parent})
			continue
		}
		parent.Children = append(parent.Children, item)
	}

	reachable := make(map[*models.ContentItem]struct{}, len(items))
	var mark func(*models.ContentItem)
	mark = func(n *models.ContentItem) {
		reachable[n] = struct{}{}
		for _, c := range n.Children {
			mark(c)
		}
	}
	for _, r := range report.Roots {
		mark(r)
	}
	dropped := make(map[*models.ContentItem]struct{}, len(report.Orphans)+len(report.Cyclic))
	for _, o := range report.Orphans {
		dropped[o] = struct{}{}
	}
	for _, c := range report.Cyclic {
		dropped[c] = struct{}{}
	}
	for _, item := range items {
		if _, ok := reachable[item]; ok {
			continue
		}
		if _, ok := dropped[item]; ok {
			continue
		}
		b.logger.Debug("item hangs below a dropped ancestor",
			slog.String("identifier", item.Identifier),
			slog.String("parent", item.Parent))
		report.Detached = append(report.Detached, item)
	}

	return report
}

// findCycles returns every item whose parent chain revisits it, self-parenting included.
// Each item is walked at most once, so the pass is linear.
func findCycles(items []*models.ContentItem, parentOf func(*models.ContentItem) *models.ContentItem) map[*models.ContentItem]struct{} {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[*models.ContentItem]int, len(items))
	cyclic := make(map[*models.ContentItem]struct{})

	for _, start := range items {
		if state[start] != unvisited {
			continue
		}
		var path []*models.ContentItem
		cur := start
		for cur != nil && state[cur] == unvisited {
			state[cur] = onPath
			path = append(path, cur)
			cur = parentOf(cur)
		}
		if cur != nil && state[cur] == onPath {
			inCycle := false
			for _, n := range path {
				if n == cur {
					inCycle = true
				}
				if inCycle {
					cyclic[n] = struct{}{}
				}
			}
		}
		for _, n := range path {
			state[n] = done
		}
	}
	return cyclic
}
