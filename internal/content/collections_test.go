package content

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/grove/internal/apperr"
	"github.com/starford/grove/internal/storage"
)

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

var testGlobs = Globs{
	Writing: []string{"writing/**/*.md"},
	Pages:   []string{"pages/**/*.md"},
}

func writeFiles(t *testing.T, files map[string]string) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	for p, body := range files {
		require.NoError(t, store.Write(p, []byte(body)))
	}
	return store
}

func siteFixture(t *testing.T) *storage.FS {
	return writeFiles(t, map[string]string{
		"writing/old-post.md":      "---\ntitle: Old\ndestination: blog\npublished: true\ndate: 2023-01-01\n---\n",
		"writing/new-post.md":      "---\ntitle: New\ndestination: blog\npublished: true\ndate: 2024-05-01\n---\n",
		"writing/draft-post.md":    "---\ntitle: Draft\ndestination: blog\nstatus: drafting\ndate: 2024-02-01\n---\n",
		"writing/future-post.md":   "---\ntitle: Future\ndestination: blog\npublished: true\ndate: 2025-01-01\n---\n",
		"writing/undated.md":       "---\ntitle: Undated\n---\n",
		"writing/garden.md":        "---\ntitle: Garden\ndate: 2023-01-01\n---\n",
		"writing/garden/roses.md":  "---\ntitle: Roses\nparent: Garden\ndate: 2023-01-02\n---\n",
		"writing/secret.md":        "---\ntitle: Secret\nprivate: true\ndate: 2023-01-01\n---\n",
		"writing/secret-child.md":  "---\ntitle: Child of secret\nparent: secret\ndate: 2023-01-01\n---\n",
		"writing/broken.md":        "---\ntitle: [unclosed\n---\n",
		"pages/about/index.md":     "---\ntitle: About\n---\n# About\n",
	})
}

func assemble(t *testing.T, mode Mode) *Collections {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewAssembler(NewLoader(siteFixture(t), logger), testGlobs, mode, logger, WithClock(func() time.Time { return fixedNow }))
	cols, err := a.Assemble(context.Background())
	require.NoError(t, err)
	return cols
}

func TestAssemble_Production(t *testing.T) {
	cols := assemble(t, ModeProduction)

	assert.Equal(t, []string{"new-post", "old-post"}, ids(cols.Posts))
	assert.Equal(t, []string{"garden"}, ids(cols.Notes))
	assert.Equal(t, []string{"roses"}, ids(cols.Notes[0].Children))
	assert.Equal(t, []string{"secret-child"}, ids(cols.Tree.Orphans))
	assert.Equal(t, []string{"about"}, ids(cols.Pages))
	assert.Equal(t, "/about/", cols.Pages[0].URL)
}

func TestAssemble_Preview(t *testing.T) {
	cols := assemble(t, ModePreview)

	assert.Equal(t, []string{"future-post", "new-post", "draft-post", "old-post"}, ids(cols.Posts))
	assert.Equal(t, []string{"garden", "secret", "undated"}, ids(cols.Notes))
	secret := cols.Notes[1]
	assert.Equal(t, []string{"secret-child"}, ids(secret.Children))
	assert.Empty(t, cols.Tree.Orphans)
}

func TestCollections_GetFindFlatten(t *testing.T) {
	cols := assemble(t, ModeProduction)

	notes, err := cols.Get(CollectionNotes)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	_, err = cols.Get("drafts")
	assert.True(t, errors.Is(err, apperr.ErrUnknownCollection))

	it, ok := cols.Find("ROSES")
	require.True(t, ok)
	assert.Equal(t, "Roses", it.Title)

	_, ok = cols.Find("secret")
	assert.False(t, ok)

	assert.Equal(t, []string{"new-post", "old-post", "garden", "roses", "about"}, ids(cols.Flatten()))
}

func TestFileSlug(t *testing.T) {
	assert.Equal(t, "roses", FileSlug("writing/garden/roses.md"))
	assert.Equal(t, "about", FileSlug("pages/about/index.md"))
	assert.Equal(t, "index", FileSlug("index.md"))
}

func TestAudit(t *testing.T) {
	cols := assemble(t, ModePreview)
	report := Audit(cols.Writing, fixedNow)

	assert.Equal(t, []string{"future-post"}, ids(report.Scheduled))

	buckets := map[string][]string{}
	for _, b := range report.Drafts {
		buckets[b.Status] = ids(b.Items)
	}
	assert.Equal(t, []string{"draft-post"}, buckets["drafting"])
	assert.Empty(t, buckets["unknown"])

	out := report.HTML(time.UTC)
	assert.Contains(t, out, "<li><strong>Jan 01:</strong> Future</li>")
	assert.Contains(t, out, "<h3>Drafting 🤮</h3><ul><li>draft-post</li></ul>")
	assert.False(t, strings.Contains(out, "Missing a title"))
}

func TestAudit_UnknownAndNoTitle(t *testing.T) {
	store := writeFiles(t, map[string]string{
		"writing/mystery.md": "---\ndestination: blog\ndate: 2020-01-01\n---\nno heading\n",
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	items, err := NewLoader(store, logger).Load(context.Background(), "writing/*.md")
	require.NoError(t, err)

	report := Audit(items, fixedNow)
	assert.Equal(t, []string{"mystery"}, ids(report.NoTitle))
	assert.Equal(t, []string{"mystery"}, ids(report.Drafts[len(report.Drafts)-1].Items))
	assert.Contains(t, report.HTML(nil), "<em>Time to schedule a post!</em>")
}

func TestAudit_HeadingDoesNotCountAsTitle(t *testing.T) {
	store := writeFiles(t, map[string]string{
		"writing/heading.md": "---\ndestination: blog\n---\n# Heading only\n",
		"writing/named.md":   "---\ntitle: Named\ndestination: blog\n---\n# Other heading\n",
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	items, err := NewLoader(store, logger).Load(context.Background(), "writing/*.md")
	require.NoError(t, err)

	report := Audit(items, fixedNow)
	assert.Equal(t, []string{"heading"}, ids(report.NoTitle))
	for _, it := range items {
		if it.Identifier == "heading" {
			assert.Equal(t, "Heading only", it.Title)
		}
	}
}
