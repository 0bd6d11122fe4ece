package content

import (
	"html"
	"sort"
	"strings"
	"time"

	"github.com/starford/grove/internal/models"
)

// auditStatuses lists the post workflow states in report order.
var auditStatuses = []struct {
	Status string
	Emoji  string
}{
	{"announcing", "🎙️"},
	{"publishing", "🚀"},
	{"editing", "💅"},
	{"drafting", "🤮"},
	{"outlining", "🌳"},
	{"researching", "🔍"},
	{"unknown", "🤷‍♂️"},
}

// AuditBucket groups unpublished posts sharing a status.
type AuditBucket struct {
	Status string                `json:"status"`
	Emoji  string                `json:"emoji"`
	Items  []*models.ContentItem `json:"items"`
}

// AuditReport summarises the editorial state of all content.
type AuditReport struct {
	NoTitle   []*models.ContentItem `json:"no_title"`
	Scheduled []*models.ContentItem `json:"scheduled"`
	Drafts    []AuditBucket         `json:"drafts"`
}

// Audit inspects every item regardless of build mode. Posts dated after now are
// scheduled; other posts are bucketed by status, and posts with neither a status
// nor a published flag land in "unknown".
func Audit(items []*models.ContentItem, now time.Time) *AuditReport {
	report := &AuditReport{
		NoTitle:   []*models.ContentItem{},
		Scheduled: []*models.ContentItem{},
		Drafts:    make([]AuditBucket, len(auditStatuses)),
	}
	byStatus := make(map[string]int, len(auditStatuses))
	for i, s := range auditStatuses {
		report.Drafts[i] = AuditBucket{Status: s.Status, Emoji: s.Emoji, Items: []*models.ContentItem{}}
		byStatus[s.Status] = i
	}
	unknown := byStatus["unknown"]

	for _, it := range items {
		if !it.HasTitle {
			report.NoTitle = append(report.NoTitle, it)
		}
		if !it.IsPost() {
			continue
		}
		if it.Date.After(now) {
			report.Scheduled = append(report.Scheduled, it)
			continue
		}
		if i, ok := byStatus[it.Status]; ok {
			report.Drafts[i].Items = append(report.Drafts[i].Items, it)
		}
		if it.Status == "" && !it.Published {
			report.Drafts[unknown].Items = append(report.Drafts[unknown].Items, it)
		}
	}

	sort.SliceStable(report.Scheduled, func(i, j int) bool {
		return report.Scheduled[i].Date.Before(report.Scheduled[j].Date)
	})
	return report
}

// HTML renders the report as the body of a status email. Dates use loc.
func (r *AuditReport) HTML(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder

	if len(r.NoTitle) > 0 {
		b.WriteString("<h3>🤷‍♂️ Missing a title</h3><ul>")
		writeSlugs(&b, r.NoTitle)
		b.WriteString("</ul>")
	}

	b.WriteString("<h3>Scheduled 📆</h3>")
	if len(r.Scheduled) == 0 {
		b.WriteString("<em>Time to schedule a post!</em>")
	} else {
		b.WriteString("<ul>")
		for _, it := range r.Scheduled {
			b.WriteString("<li><strong>")
			b.WriteString(it.Date.In(loc).Format("Jan 02"))
			b.WriteString(":</strong> ")
			b.WriteString(html.EscapeString(it.Title))
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
	}

	for _, bucket := range r.Drafts {
		if len(bucket.Items) == 0 {
			continue
		}
		b.WriteString("<h3>")
		b.WriteString(strings.ToUpper(bucket.Status[:1]) + bucket.Status[1:])
		b.WriteString(" ")
		b.WriteString(bucket.Emoji)
		b.WriteString("</h3><ul>")
		writeSlugs(&b, bucket.Items)
		b.WriteString("</ul>")
	}
	return b.String()
}

func writeSlugs(b *strings.Builder, items []*models.ContentItem) {
	for _, it := range items {
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(it.Identifier))
		b.WriteString("</li>")
	}
}
