package internal

import (
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata" // site time zones must resolve on hosts without zoneinfo

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/grove/internal/content"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Site        SiteConfig        `yaml:"site"`
	Build       BuildConfig       `yaml:"build"`
	Collections CollectionsConfig `yaml:"collections"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	if err := c.Collections.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds preview server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SiteConfig describes where content lives and where the site is written.
type SiteConfig struct {
	Title        string `yaml:"title"`
	URL          string `yaml:"url"`
	ContentDir   string `yaml:"content_dir"`
	OutputDir    string `yaml:"output_dir"`
	TemplatesDir string `yaml:"templates_dir"`
	DataDir      string `yaml:"data_dir"`
	TimeZone     string `yaml:"time_zone"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ContentDir, validation.Required),
		validation.Field(&c.OutputDir, validation.Required),
		validation.Field(&c.TemplatesDir, validation.Required),
		validation.Field(&c.TimeZone, validation.Required, validation.By(func(v any) error {
			if _, err := time.LoadLocation(v.(string)); err != nil {
				return fmt.Errorf("unknown time zone")
			}
			return nil
		})),
	)
}

// Location returns the site time zone, falling back to UTC.
func (c *SiteConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BuildConfig controls visibility filtering and the content audit.
//
// Mode is "production" (drafts, scheduled and private content removed) or
// "preview" (everything kept).
type BuildConfig struct {
	Mode  string `yaml:"mode"`
	Audit bool   `yaml:"audit"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required,
			validation.In(string(content.ModeProduction), string(content.ModePreview))),
	)
}

// ContentMode returns the parsed build mode.
func (c *BuildConfig) ContentMode() content.Mode {
	m, err := content.ParseMode(c.Mode)
	if err != nil {
		return content.ModePreview
	}
	return m
}

// CollectionsConfig holds the doublestar globs collections are read from,
// relative to the content directory.
type CollectionsConfig struct {
	Writing []string `yaml:"writing"`
	Pages   []string `yaml:"pages"`
}

// Validate validates the collections configuration.
func (c *CollectionsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Writing, validation.Required),
		validation.Field(&c.Pages, validation.Required),
	)
}

// Globs converts the configuration into content globs.
func (c *CollectionsConfig) Globs() content.Globs {
	return content.Globs{Writing: c.Writing, Pages: c.Pages}
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds preview API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Site: SiteConfig{
			Title:        "grove",
			URL:          "http://localhost:8080/",
			ContentDir:   "./src/content",
			OutputDir:    "./_site",
			TemplatesDir: "./src/_includes",
			DataDir:      "./src/_data",
			TimeZone:     "America/Toronto",
		},
		Build: BuildConfig{
			Mode: string(content.ModePreview),
		},
		Collections: CollectionsConfig{
			Writing: []string{"writing/**/*.md"},
			Pages:   []string{"pages/**/*.md"},
		},
		SQLite: SQLiteConfig{
			Path: "./grove.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
