package content

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/grove/internal/apperr"
	"github.com/starford/grove/internal/models"
)

func item(id, parent string) *models.ContentItem {
	return &models.ContentItem{Identifier: id, Parent: parent, InputPath: id + ".md"}
}

func quietBuilder() *TreeBuilder {
	return NewTreeBuilder(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ids(items []*models.ContentItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Identifier)
	}
	return out
}

func countReachable(roots []*models.ContentItem) int {
	n := 0
	for _, r := range roots {
		n += 1 + countReachable(r.Children)
	}
	return n
}

func TestBuild_CaseInsensitiveParent(t *testing.T) {
	a, b, c := item("a", ""), item("b", "a"), item("c", "A")
	report := quietBuilder().Build([]*models.ContentItem{a, b, c})

	require.Equal(t, []string{"a"}, ids(report.Roots))
	assert.Equal(t, []string{"b", "c"}, ids(a.Children))
	assert.Empty(t, report.Errors)
	assert.NoError(t, report.Err())
}

func TestBuild_MissingParentDropsItem(t *testing.T) {
	var buf bytes.Buffer
	b := NewTreeBuilder(slog.New(slog.NewTextHandler(&buf, nil)))
	x := item("x", "missing")

	report := b.Build([]*models.ContentItem{x})

	assert.Empty(t, report.Roots)
	require.Len(t, report.Orphans, 1)
	assert.Same(t, x, report.Orphans[0])
	assert.Contains(t, buf.String(), "tree does not contain missing")
	assert.True(t, errors.Is(report.Err(), apperr.ErrUnresolvedParent))

	var te *TreeError
	require.True(t, errors.As(report.Err(), &te))
	assert.Equal(t, "x", te.Identifier)
	assert.Equal(t, "missing", te.Parent)
}

func TestBuild_EmptyInput(t *testing.T) {
	report := quietBuilder().Build(nil)
	assert.NotNil(t, report.Roots)
	assert.Empty(t, report.Roots)
	assert.NoError(t, report.Err())
}

func TestBuild_SelfParentRejected(t *testing.T) {
	root := item("root", "")
	self := item("self", "SELF")
	report := quietBuilder().Build([]*models.ContentItem{root, self})

	assert.Equal(t, []string{"root"}, ids(report.Roots))
	assert.Equal(t, []string{"self"}, ids(report.Cyclic))
	assert.Empty(t, self.Children)
	assert.True(t, errors.Is(report.Err(), apperr.ErrCycle))
}

func TestBuild_LongerCycleAndDetachedDescendant(t *testing.T) {
	p := item("p", "q")
	q := item("q", "p")
	leaf := item("leaf", "p")
	ok := item("ok", "")
	report := quietBuilder().Build([]*models.ContentItem{p, q, leaf, ok})

	assert.Equal(t, []string{"ok"}, ids(report.Roots))
	assert.ElementsMatch(t, []string{"p", "q"}, ids(report.Cyclic))
	assert.Equal(t, []string{"leaf"}, ids(report.Detached))
	assert.Empty(t, q.Children, "cyclic items must not be attached")
}

func TestBuild_ChildOfOrphanIsDetached(t *testing.T) {
	mid := item("mid", "gone")
	leaf := item("leaf", "mid")
	report := quietBuilder().Build([]*models.ContentItem{mid, leaf})

	assert.Empty(t, report.Roots)
	assert.Equal(t, []string{"mid"}, ids(report.Orphans))
	assert.Equal(t, []string{"leaf"}, ids(report.Detached))
}

func TestBuild_DuplicateIdentifierLastWins(t *testing.T) {
	first := item("dup", "")
	second := item("DUP", "")
	child := item("child", "dup")
	report := quietBuilder().Build([]*models.ContentItem{first, second, child})

	assert.Equal(t, []string{"dup", "DUP"}, ids(report.Roots))
	assert.Empty(t, first.Children)
	assert.Equal(t, []string{"child"}, ids(second.Children))
	assert.Equal(t, []string{"dup"}, report.Duplicates)
	assert.True(t, errors.Is(report.Err(), apperr.ErrDuplicateIdentifier))
}

func TestBuild_ConservesItems(t *testing.T) {
	items := []*models.ContentItem{
		item("a", ""), item("b", "a"), item("c", "b"), item("d", "nope"),
		item("e", "d"), item("f", "f"), item("g", ""), item("h", "G"),
	}
	report := quietBuilder().Build(items)

	total := countReachable(report.Roots) + len(report.Orphans) + len(report.Cyclic) + len(report.Detached)
	assert.Equal(t, len(items), total)
}

func TestBuild_ResetsChildrenAndIsRepeatable(t *testing.T) {
	a, b, c := item("a", ""), item("b", "a"), item("c", "a")
	items := []*models.ContentItem{a, b, c}

	first := ids(quietBuilder().Build(items).Roots[0].Children)
	second := ids(quietBuilder().Build(items).Roots[0].Children)

	assert.Equal(t, []string{"b", "c"}, first)
	assert.Equal(t, first, second)
}

func TestBuild_PreservesInputOrder(t *testing.T) {
	root := item("root", "")
	kids := []*models.ContentItem{item("z", "root"), item("m", "root"), item("a", "root")}
	items := append([]*models.ContentItem{kids[0], root}, kids[1:]...)

	quietBuilder().Build(items)
	assert.Equal(t, []string{"z", "m", "a"}, ids(root.Children))
}

func TestBuildTree_ReturnsRoots(t *testing.T) {
	roots := BuildTree([]*models.ContentItem{item("one", ""), item("two", "one")})
	require.Len(t, roots, 1)
	assert.Equal(t, "two", roots[0].Children[0].Identifier)
}
