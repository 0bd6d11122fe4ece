// Package parser extracts frontmatter, tags, title and publishing metadata from Markdown content.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// dateLayouts are tried in order when a frontmatter date arrives as a string.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Meta holds the frontmatter fields grove understands.
type Meta struct {
	Parent      string
	Published   bool
	Private     bool
	Date        time.Time
	HasDate     bool
	// HasTitle reports a non-empty frontmatter title. A heading in the body does not count.
	HasTitle    bool
	Destination string
	Status      string
	Category    string
	Permalink   string
	Description string
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Tags        []string
	Title       string
	Meta        Meta
}

// Parse extracts frontmatter, body, tags and metadata from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	meta, err := extractMeta(fm)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        extractTags(fm),
		Title:       deriveTitle(fm, body),
		Meta:        meta,
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// A broken frontmatter block makes the whole file unusable as content.
		return nil, "", fmt.Errorf("parser: frontmatter: %w", err)
	}

	return fm, body, nil
}

// extractMeta reads the publishing fields out of a decoded frontmatter map.
func extractMeta(fm map[string]any) (Meta, error) {
	var m Meta
	if fm == nil {
		return m, nil
	}
	m.Parent = stringField(fm, "parent")
	m.Published = boolField(fm, "published")
	m.Private = boolField(fm, "private")
	m.Destination = stringField(fm, "destination")
	m.Status = stringField(fm, "status")
	m.Category = stringField(fm, "category")
	m.Permalink = stringField(fm, "permalink")
	m.Description = stringField(fm, "description")
	m.HasTitle = stringField(fm, "title") != ""

	if raw, ok := fm["date"]; ok && raw != nil {
		d, err := parseDate(raw)
		if err != nil {
			return m, err
		}
		m.Date = d
		m.HasDate = true
	}
	return m, nil
}

func parseDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("parser: unrecognised date %q", v)
	default:
		return time.Time{}, fmt.Errorf("parser: unsupported date value %v", raw)
	}
}

func stringField(fm map[string]any, key string) string {
	switch v := fm[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func boolField(fm map[string]any, key string) bool {
	switch v := fm[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

// extractTags collects tags from the frontmatter "tags" field. Hashes in the
// body are prose, not tags.
func extractTags(fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		add(v)
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
