package index

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/grove/internal/apperr"
	"github.com/starford/grove/internal/content"
	"github.com/starford/grove/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "grove-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func item(path, id, checksum string) *models.ContentItem {
	return &models.ContentItem{
		Identifier: id,
		InputPath:  path,
		URL:        "/" + id + "/",
		Title:      id,
		Checksum:   checksum,
		Body:       "body of " + id,
		Visibility: models.Visibility{Published: true, Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM items`).Scan(&count); err != nil {
		t.Fatalf("items table missing: %v", err)
	}
}

func TestUpsertAndGetItem(t *testing.T) {
	db := testDB(t)
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	row := ItemRow{
		Path:       "writing/hello.md",
		Identifier: "hello",
		Collection: content.CollectionPosts,
		Title:      "Hello World",
		URL:        "/hello/",
		Checksum:   "abc123",
		Tags:       []string{"go", "test"},
		Published:  true,
		Date:       &date,
	}
	if err := db.UpsertItem(row, "This is a hello world post."); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	got, err := db.GetItem("HELLO")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Checksum != "abc123" || got.Collection != content.CollectionPosts || !got.Published {
		t.Errorf("row = %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Date == nil || !got.Date.Equal(date) {
		t.Errorf("date = %v, want %v", got.Date, date)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetItem("nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertItem(ItemRow{Path: "up.md", Identifier: "up", Collection: "notes", Title: "Old", Checksum: "1"}, "old body")
	_ = db.UpsertItem(ItemRow{Path: "up.md", Identifier: "up", Collection: "notes", Title: "New", Checksum: "2"}, "new body")

	checksums, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if checksums["up.md"] != "2" || len(checksums) != 1 {
		t.Errorf("checksums = %v", checksums)
	}
	got, _ := db.GetItem("up")
	if got.Title != "New" || got.Date != nil {
		t.Errorf("row = %+v", got)
	}
}

func TestDeleteItem(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertItem(ItemRow{Path: "del.md", Identifier: "del", Collection: "notes", Checksum: "x"}, "body")

	if err := db.DeleteItem("del.md"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := db.GetItem("del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted item still present: %v", err)
	}
}

func TestListItems(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertItem(ItemRow{Path: "b.md", Identifier: "b", Collection: "notes", Checksum: "1"}, "")
	_ = db.UpsertItem(ItemRow{Path: "a.md", Identifier: "a", Collection: "notes", Checksum: "1"}, "")
	_ = db.UpsertItem(ItemRow{Path: "p.md", Identifier: "p", Collection: "posts", Checksum: "1"}, "")

	notes, err := db.ListItems("notes")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(notes) != 2 || notes[0].Path != "a.md" {
		t.Errorf("notes = %+v", notes)
	}
	all, _ := db.ListItems("")
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertItem(ItemRow{Path: "s.md", Identifier: "s", Collection: "notes", Title: "Search Me", Checksum: "1"}, "uniqueword appears here")

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.md" || results[0].Identifier != "s" {
		t.Errorf("search results = %+v, want 1 hit for s.md", results)
	}
}

func TestSync_IndexesCollectionsAndRemovesStale(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertItem(ItemRow{Path: "writing/gone.md", Identifier: "gone", Collection: "notes", Checksum: "old"}, "")

	root := item("writing/garden.md", "garden", "g1")
	child := item("writing/garden/roses.md", "roses", "r1")
	child.Parent = "garden"
	root.Children = []*models.ContentItem{child}
	cols := &content.Collections{
		Posts: []*models.ContentItem{item("writing/post.md", "post", "p1")},
		Notes: []*models.ContentItem{root},
		Pages: []*models.ContentItem{item("pages/about.md", "about", "a1")},
	}

	stats, err := Sync(db, cols, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Indexed != 4 || stats.Removed != 1 || stats.Unchanged != 0 {
		t.Errorf("stats = %+v", stats)
	}

	roses, err := db.GetItem("roses")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if roses.Collection != content.CollectionNotes || roses.Parent != "garden" {
		t.Errorf("roses = %+v", roses)
	}
	if _, err := db.GetItem("gone"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("stale row should be removed")
	}

	stats, _ = Sync(db, cols, quietLogger())
	if stats.Indexed != 0 || stats.Unchanged != 4 {
		t.Errorf("second sync stats = %+v", stats)
	}
}
