// Package notify delivers the content audit report.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/grove/internal/storage"
)

// AuditSubject is the subject line of the audit report.
const AuditSubject = "Blog post status ✍️"

// AuditFile is where FileNotifier writes the report, relative to the output root.
const AuditFile = "_audit.html"

// Notifier hands a rendered HTML report to its recipient.
type Notifier interface {
	Notify(ctx context.Context, subject, html string) error
}

// LogNotifier writes the report to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, subject, html string) error {
	n.logger.Info("audit report", slog.String("subject", subject), slog.Int("bytes", len(html)), slog.String("html", html))
	return nil
}

// FileNotifier writes the report as a standalone HTML page.
type FileNotifier struct {
	store storage.Provider
	path  string
}

// NewFileNotifier creates a FileNotifier writing AuditFile into store.
func NewFileNotifier(store storage.Provider) *FileNotifier {
	return &FileNotifier{store: store, path: AuditFile}
}

// Notify implements Notifier.
func (n *FileNotifier) Notify(ctx context.Context, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page := "<!doctype html><html><head><meta charset=\"utf-8\"><title>" + subject + "</title></head><body>" + html + "</body></html>"
	return n.store.Write(n.path, []byte(page))
}

// Multi fans a report out to several notifiers, reporting every failure.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, subject, html string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, html); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
