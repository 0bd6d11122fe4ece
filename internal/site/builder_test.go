package site

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/grove/internal/content"
	"github.com/starford/grove/internal/models"
	"github.com/starford/grove/internal/testutil"
)

func fixtureCollections() *content.Collections {
	date := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	post := &models.ContentItem{Identifier: "hello", URL: "/hello/", Title: "Hello", Visibility: models.Visibility{Date: date}}
	roses := &models.ContentItem{Identifier: "roses", Parent: "garden", URL: "/roses/", Title: "Roses"}
	garden := &models.ContentItem{Identifier: "garden", URL: "/garden/", Title: "Garden", Children: []*models.ContentItem{roses}}
	feed := &models.ContentItem{Identifier: "feed", URL: "/feed.xml", Title: "Feed"}
	return &content.Collections{
		Posts: []*models.ContentItem{post},
		Notes: []*models.ContentItem{garden},
		Pages: []*models.ContentItem{feed},
	}
}

func TestBuilder_RendersTemplates(t *testing.T) {
	_, templates := testutil.TestContentRoot(t, map[string]string{
		"index.html": `{{.Data.site.author}}:{{range .Posts}}{{.Title}}{{end}}`,
		"page.html":  `<h1>{{.Page.Title}}</h1>{{len .Page.Children}}`,
	})
	_, data := testutil.TestContentRoot(t, map[string]string{"site.yaml": "author: Ana\n"})
	_, out := testutil.TestContentRoot(t, nil)

	b := NewBuilder(templates, data, out, Meta{Title: "grove"}, time.UTC, testutil.DiscardLogger())
	res, err := b.Build(context.Background(), fixtureCollections(), content.ModeProduction)
	require.NoError(t, err)

	assert.Equal(t, []string{"notes/index.html"}, res.Skipped)
	assert.ElementsMatch(t, []string{
		"index.html", "hello/index.html", "garden/index.html", "roses/index.html", "feed.xml", CollectionsFile,
	}, res.Written)

	index, err := out.Read("index.html")
	require.NoError(t, err)
	assert.Equal(t, "Ana:Hello", string(index))

	garden, err := out.Read("garden/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Garden</h1>1", string(garden))
}

func TestBuilder_WritesCollectionsTree(t *testing.T) {
	_, out := testutil.TestContentRoot(t, nil)
	b := NewBuilder(nil, nil, out, Meta{}, time.UTC, testutil.DiscardLogger())

	res, err := b.Build(context.Background(), fixtureCollections(), content.ModePreview)
	require.NoError(t, err)
	assert.Equal(t, []string{CollectionsFile}, res.Written)

	raw, err := out.Read(CollectionsFile)
	require.NoError(t, err)
	var dump struct {
		Notes []struct {
			Identifier string `json:"identifier"`
			Children   []struct {
				Identifier string `json:"identifier"`
			} `json:"children"`
		} `json:"notes"`
		Pages []json.RawMessage `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(raw, &dump))
	require.Len(t, dump.Notes, 1)
	assert.Equal(t, "garden", dump.Notes[0].Identifier)
	assert.Equal(t, "roses", dump.Notes[0].Children[0].Identifier)
	assert.Len(t, dump.Pages, 1)
}

func TestBuilder_TemplateErrorFails(t *testing.T) {
	_, templates := testutil.TestContentRoot(t, map[string]string{"index.html": `{{.Missing.Field}`})
	_, out := testutil.TestContentRoot(t, nil)
	b := NewBuilder(templates, nil, out, Meta{}, time.UTC, testutil.DiscardLogger())

	_, err := b.Build(context.Background(), fixtureCollections(), content.ModePreview)
	assert.Error(t, err)
}

func TestLoadData_InvalidYAML(t *testing.T) {
	_, data := testutil.TestContentRoot(t, map[string]string{"nav.yaml": "top: [unclosed\n"})
	_, err := LoadData(data)
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "hello/index.html", OutputPath("/hello/"))
	assert.Equal(t, "notes/a/index.html", OutputPath("/notes/a"))
	assert.Equal(t, "feed.xml", OutputPath("/feed.xml"))
	assert.Equal(t, "index.html", OutputPath("/"))
	assert.Equal(t, "etc/index.html", OutputPath("/../../etc/"))
}

func TestBuilder_PrunesOutputsOfPreviousBuild(t *testing.T) {
	_, templates := testutil.TestContentRoot(t, map[string]string{"page.html": `{{.Page.Title}}`})
	_, out := testutil.TestContentRoot(t, nil)
	b := NewBuilder(templates, nil, out, Meta{}, time.UTC, testutil.DiscardLogger())

	cols := fixtureCollections()
	_, err := b.Build(context.Background(), cols, content.ModePreview)
	require.NoError(t, err)

	cols.Posts = nil
	res, err := b.Build(context.Background(), cols, content.ModePreview)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello/index.html"}, res.Removed)

	_, err = out.Read("hello/index.html")
	assert.Error(t, err)
	_, err = out.Read("garden/index.html")
	assert.NoError(t, err)
}

func TestBuilder_PagesNeverOverwriteListingsOrEachOther(t *testing.T) {
	_, templates := testutil.TestContentRoot(t, map[string]string{
		"index.html": `INDEX`,
		"notes.html": `NOTES`,
		"page.html":  `PAGE:{{.Page.Identifier}}`,
	})
	_, out := testutil.TestContentRoot(t, nil)
	b := NewBuilder(templates, nil, out, Meta{}, time.UTC, testutil.DiscardLogger())

	cols := &content.Collections{
		Posts: []*models.ContentItem{{Identifier: "hello", URL: "/hello/"}},
		Notes: []*models.ContentItem{
			{Identifier: "hello", URL: "/hello/"},
			{Identifier: "notes", URL: "/notes/"},
		},
		Pages: []*models.ContentItem{{Identifier: "about", URL: "/"}},
	}
	res, err := b.Build(context.Background(), cols, content.ModePreview)
	require.NoError(t, err)

	assert.Equal(t, []string{"index.html", "notes/index.html", "hello/index.html", CollectionsFile}, res.Written)
	assert.Equal(t, []string{
		"hello/index.html (hello)",
		"notes/index.html (notes)",
		"index.html (about)",
	}, res.Collisions)

	index, err := out.Read("index.html")
	require.NoError(t, err)
	assert.Equal(t, "INDEX", string(index))
	notes, err := out.Read("notes/index.html")
	require.NoError(t, err)
	assert.Equal(t, "NOTES", string(notes))
	hello, err := out.Read("hello/index.html")
	require.NoError(t, err)
	assert.Equal(t, "PAGE:hello", string(hello))
}
