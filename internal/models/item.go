// Package models defines the domain types for grove.
package models

import "time"

// Destinations recognised in frontmatter.
const (
	DestinationBlog = "blog"
)

// ContentItem is one publishable unit (post, note or page) loaded from the content root.
type ContentItem struct {
	// Identifier is the file slug. Parent lookups compare it case-insensitively.
	Identifier string `json:"identifier"`
	// Parent is the identifier of the parent note, empty for roots.
	Parent string `json:"parent,omitempty"`
	// Children is populated only by the tree builder.
	Children []*ContentItem `json:"children,omitempty"`

	InputPath   string         `json:"input_path"`
	URL         string         `json:"url"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Category    string         `json:"category,omitempty"`
	Status      string         `json:"status,omitempty"`
	Body        string         `json:"-"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Checksum    string         `json:"checksum"`
	// HasTitle reports a frontmatter title. Title may still hold a body heading without one.
	HasTitle    bool           `json:"-"`

	Visibility
}

// Visibility carries the metadata consumed by the draft, scheduled and private filters.
type Visibility struct {
	Published bool      `json:"published"`
	Private   bool      `json:"private,omitempty"`
	Date      time.Time `json:"date"`
	// HasDate is false when the frontmatter carried no date and Date fell back to the file time.
	HasDate bool `json:"-"`
}

// IsPost reports whether the item is destined for the blog feed.
func (c *ContentItem) IsPost() bool {
	return c.Destination == DestinationBlog
}

// ContentMetadata describes a file found by a storage glob.
type ContentMetadata struct {
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updated_at"`
}
