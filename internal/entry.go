// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/grove/internal/api"
	"github.com/starford/grove/internal/content"
	"github.com/starford/grove/internal/contentservice"
	"github.com/starford/grove/internal/index"
	"github.com/starford/grove/internal/mcpserver"
	"github.com/starford/grove/internal/notify"
	"github.com/starford/grove/internal/site"
	"github.com/starford/grove/internal/sse"
	"github.com/starford/grove/internal/storage"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	svc     *contentservice.Service
	out     io.Writer
	closers []io.Closer
}

func (rt *runtime) Close() error {
	var errs []error
	for _, c := range rt.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// setup applies options and wires storage, the index, the site builder and
// the content service. logTo receives the JSON log; the MCP command logs to
// stderr because stdout carries the protocol.
func setup(logTo io.Writer, opts []Option, svcOpts ...contentservice.Option) (*runtime, error) {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config
	mode := cfg.Build.ContentMode()
	if app.mode != "" {
		mode = app.mode
	}
	audit := cfg.Build.Audit
	if app.audit != nil {
		audit = *app.audit
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(logTo, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", string(mode)),
		slog.String("content_dir", cfg.Site.ContentDir),
		slog.String("output_dir", cfg.Site.OutputDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("audit", audit),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure content and output directories exist.
	if err := os.MkdirAll(cfg.Site.ContentDir, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Site.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	// Initialize storage.
	src, err := storage.NewFS(cfg.Site.ContentDir)
	if err != nil {
		return nil, fmt.Errorf("init content storage: %w", err)
	}
	output, err := storage.NewFS(cfg.Site.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("init output storage: %w", err)
	}
	templates, err := optionalStore(cfg.Site.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("init templates storage: %w", err)
	}
	data, err := optionalStore(cfg.Site.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init data storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	loc := cfg.Site.Location()
	builder := site.NewBuilder(templates, data, output,
		site.Meta{Title: cfg.Site.Title, URL: cfg.Site.URL}, loc, logger)
	assembler := content.NewAssembler(content.NewLoader(src, logger),
		cfg.Collections.Globs(), mode, logger)

	base := []contentservice.Option{
		contentservice.WithBuilder(builder),
		contentservice.WithIndex(db),
		contentservice.WithLocation(loc),
	}
	if audit {
		base = append(base, contentservice.WithNotifier(notify.Multi{
			notify.NewLogNotifier(logger),
			notify.NewFileNotifier(output),
		}))
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		svc:     contentservice.New(assembler, logger, append(base, svcOpts...)...),
		out:     app.out,
		closers: closers(db, src, output, templates, data),
	}, nil
}

func closers(vs ...any) []io.Closer {
	var out []io.Closer
	for _, v := range vs {
		if c, ok := v.(io.Closer); ok {
			out = append(out, c)
		}
	}
	return out
}

// optionalStore opens dir when it exists. A missing directory yields a nil
// provider so the builder skips templates or data.
func optionalStore(dir string) (storage.Provider, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Build assembles and renders the site once.
func Build(ctx context.Context, opts ...Option) error {
	rt, err := setup(os.Stdout, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.svc.Rebuild(ctx); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

// Audit builds the site and prints the audit report as HTML.
func Audit(ctx context.Context, opts ...Option) error {
	rt, err := setup(os.Stderr, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.svc.Rebuild(ctx); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	report, err := rt.svc.AuditHTML(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(rt.out, report)
	return err
}

// MCP builds the site and serves the MCP server on stdin/stdout.
func MCP(ctx context.Context, version string, opts ...Option) error {
	rt, err := setup(os.Stderr, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.svc.Rebuild(ctx); err != nil {
		rt.logger.Warn("initial build failed", slog.String("error", err.Error()))
	}
	return mcpserver.New(rt.svc, version).ServeStdio()
}

// Serve runs the live preview: an initial build, the API, the rendered site
// and a watcher that rebuilds on every content change.
func Serve(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(os.Stdout, append([]Option{WithMode(content.ModePreview)}, opts...),
		contentservice.WithRebuildHook(func(b *contentservice.Build) {
			broker.PublishRebuilt(b.Summary)
		}))
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	logger := rt.logger

	// Run initial build.
	if _, err := rt.svc.Rebuild(ctx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if rt.svc.Current() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Rendered site.
	r.Handle("/*", http.FileServer(http.Dir(cfg.Site.OutputDir)))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher; every batch of changes triggers one rebuild.
	g.Go(func() error {
		err := index.Watch(gCtx, cfg.Site.ContentDir, index.DefaultDebounce, logger, func(changes []index.Change) {
			for _, c := range changes {
				broker.PublishChange(c.Kind, c.Path)
			}
			if _, err := rt.svc.Rebuild(gCtx); err != nil {
				logger.Error("rebuild failed", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals. A signal cancels ctx, which also stops the watcher.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...", slog.String("cause", context.Cause(gCtx).Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
