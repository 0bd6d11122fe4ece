package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/grove/internal"
	"github.com/starford/grove/internal/content"
	pkgconfig "github.com/starford/grove/pkg/config"
)

var version = "dev"

// options turns global flags into application options. A missing config
// file leaves the defaults in place.
func options(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if cmd.IsSet("production") {
		mode := content.ModePreview
		if cmd.Bool("production") {
			mode = content.ModeProduction
		}
		opts = append(opts, internal.WithMode(mode))
	}
	if cmd.IsSet("audit") {
		opts = append(opts, internal.WithAudit(cmd.Bool("audit")))
	}
	return opts, nil
}

func action(run func(context.Context, ...internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := options(cmd)
		if err != nil {
			return err
		}
		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "grove",
		Usage:   "Blog content pipeline: posts, a nested notes garden and pages rendered through Go templates",
		Version: version,
		// Without a subcommand grove builds once.
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("GROVE_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:    "production",
				Usage:   "Drop drafts, scheduled posts and private notes",
				Sources: cli.EnvVars("GROVE_PRODUCTION"),
			},
			&cli.BoolFlag{
				Name:    "audit",
				Usage:   "Send the content audit report after each build",
				Sources: cli.EnvVars("AUDIT_CONTENT"),
			},
		},
		Action: action(internal.Build),
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Assemble collections and render the site once",
				Action: action(internal.Build),
			},
			{
				Name:   "serve",
				Usage:  "Live preview with rebuild on change, JSON API and server-sent events",
				Action: action(internal.Serve),
			},
			{
				Name:   "audit",
				Usage:  "Print the editorial status report as HTML",
				Action: action(internal.Audit),
			},
			{
				Name:  "mcp",
				Usage: "Serve built content to LLM clients over MCP stdio",
				Action: action(func(ctx context.Context, opts ...internal.Option) error {
					return internal.MCP(ctx, version, opts...)
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
