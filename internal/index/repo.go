package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/grove/internal/apperr"
)

// ItemRow represents a row in the items table.
type ItemRow struct {
	Path       string     `json:"path"`
	Identifier string     `json:"identifier"`
	Collection string     `json:"collection"`
	Parent     string     `json:"parent,omitempty"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Checksum   string     `json:"checksum"`
	Tags       []string   `json:"tags"`
	Published  bool       `json:"published"`
	Private    bool       `json:"private"`
	Date       *time.Time `json:"date,omitempty"`
	// Body is filled by GetItem only.
	Body string `json:"-"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path       string `json:"path"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}

const itemColumns = `path, identifier, collection, parent, title, url, checksum, tags, published, private, date`

// UpsertItem inserts or replaces an item and its FTS entry within a transaction.
func (db *DB) UpsertItem(r ItemRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if r.Tags == nil {
		r.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(r.Tags)

	_, err = tx.Exec(`
		INSERT INTO items (`+itemColumns+`, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			identifier = excluded.identifier,
			collection = excluded.collection,
			parent     = excluded.parent,
			title      = excluded.title,
			url        = excluded.url,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			published  = excluded.published,
			private    = excluded.private,
			date       = excluded.date,
			body       = excluded.body
	`, r.Path, r.Identifier, r.Collection, r.Parent, r.Title, r.URL, r.Checksum,
		string(tagsJSON), r.Published, r.Private, r.Date, body)
	if err != nil {
		return fmt.Errorf("index: upsert item: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Path, r.Title, body, r.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteItem removes an item and its FTS entry.
func (db *DB) DeleteItem(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM items WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete item: %w", err)
	}
	return tx.Commit()
}

// GetItem looks an item up by identifier, ignoring case.
func (db *DB) GetItem(identifier string) (*ItemRow, error) {
	row := db.conn.QueryRow(`SELECT `+itemColumns+`, body FROM items WHERE identifier = ? COLLATE NOCASE ORDER BY path LIMIT 1`, identifier)
	var body string
	r, err := scanItem(row, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: item %q: %w", identifier, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get item: %w", err)
	}
	r.Body = body
	return r, nil
}

// ListItems returns the items of one collection ordered by path. An empty
// collection name lists everything.
func (db *DB) ListItems(collection string) ([]ItemRow, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	if collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY path`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list items: %w", err)
	}
	defer rows.Close()

	out := []ItemRow{}
	for rows.Next() {
		r, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// AllChecksums returns path -> checksum for every indexed item.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM items`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanItem reads itemColumns followed by any extra columns into extra.
func scanItem(s scanner, extra ...any) (*ItemRow, error) {
	var (
		r        ItemRow
		tagsJSON string
		date     sql.NullTime
	)
	dest := []any{&r.Path, &r.Identifier, &r.Collection, &r.Parent, &r.Title, &r.URL,
		&r.Checksum, &tagsJSON, &r.Published, &r.Private, &date}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
		r.Tags = []string{}
	}
	if date.Valid {
		t := date.Time
		r.Date = &t
	}
	return &r, nil
}
