// Package site renders assembled collections into a static site with html/template.
package site

import (
	"fmt"
	"html/template"
	"time"

	"github.com/Masterminds/sprig"

	"github.com/starford/grove/internal/models"
)

// ReadableLayout is the default readableDate layout.
const ReadableLayout = "Jan 2, 2006"

// ignoredTags are collection-plumbing tags hidden from tag lists.
var ignoredTags = map[string]struct{}{
	"all":   {},
	"nav":   {},
	"post":  {},
	"posts": {},
}

// FuncMap returns the sprig functions plus the site's own filters and
// shortcodes. Dates are rendered in loc.
func FuncMap(loc *time.Location) template.FuncMap {
	if loc == nil {
		loc = time.UTC
	}
	funcs := sprig.FuncMap()
	funcs["readableDate"] = func(date any, layout ...string) (string, error) {
		t, err := toTime(date)
		if err != nil {
			return "", err
		}
		l := ReadableLayout
		if len(layout) > 0 && layout[0] != "" {
			l = layout[0]
		}
		return t.In(loc).Format(l), nil
	}
	funcs["htmlDateString"] = func(date any) (string, error) {
		t, err := toTime(date)
		if err != nil {
			return "", err
		}
		return t.In(loc).Format("2006-01-02"), nil
	}
	funcs["isPageInCollection"] = IsPageInCollection
	funcs["getAllTags"] = AllTags
	funcs["filterTagList"] = FilterTagList
	funcs["head"] = Head
	funcs["minInt"] = MinInt
	funcs["image"] = Image
	funcs["cdnImage"] = CDNImage
	return funcs
}

// toTime accepts the date shapes templates pass around.
func toTime(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case *time.Time:
		if d == nil {
			return time.Time{}, fmt.Errorf("site: nil date")
		}
		return *d, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, d); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("site: unrecognised date %q", d)
	default:
		return time.Time{}, fmt.Errorf("site: unsupported date type %T", v)
	}
}

// IsPageInCollection reports whether url belongs to one of the roots or one of
// their direct children.
func IsPageInCollection(url string, roots []*models.ContentItem) bool {
	for _, it := range roots {
		if it.URL == url {
			return true
		}
		for _, child := range it.Children {
			if child.URL == url {
				return true
			}
		}
	}
	return false
}

// AllTags returns the distinct tags of items in first-seen order.
func AllTags(items []*models.ContentItem) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, it := range items {
		for _, tag := range it.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// FilterTagList drops the tags used only to build collections.
func FilterTagList(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := ignoredTags[tag]; !ok {
			out = append(out, tag)
		}
	}
	return out
}

// Head returns the first n items, or the last -n items when n is negative.
func Head(items []*models.ContentItem, n int) []*models.ContentItem {
	if n < 0 {
		if -n >= len(items) {
			return items
		}
		return items[len(items)+n:]
	}
	if n >= len(items) {
		return items
	}
	return items[:n]
}

// MinInt returns the smallest of its arguments.
func MinInt(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
