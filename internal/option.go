package internal

import (
	"io"

	"github.com/starford/grove/internal/content"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	mode   content.Mode
	audit  *bool
	out    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode overrides the build mode from the configuration.
func WithMode(mode content.Mode) Option {
	return func(a *application) {
		a.mode = mode
	}
}

// WithAudit overrides whether the audit report is sent after each build.
func WithAudit(enabled bool) Option {
	return func(a *application) {
		a.audit = &enabled
	}
}

// WithOutput sets where command output such as the audit report is printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
