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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/laguz/internal/api"
	"github.com/starford/laguz/internal/dates"
	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/mcpserver"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/noteservice"
	"github.com/starford/laguz/internal/sse"
	"github.com/starford/laguz/internal/storage"
)

// Application runs one CLI operation against the configured vault and index.
type Application struct {
	config  *Config
	logger  *slog.Logger
	stdout  io.Writer
	version string
	svc     *noteservice.Service
}

// New builds an application from opts. A config is required.
func New(opts ...Option) (*Application, error) {
	app := &Application{stdout: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	if app.logger == nil {
		app.logger = NewLogger(os.Stderr, cfg.App)
	}

	loc, err := dates.LoadLocation(cfg.Notes.Timezone)
	if err != nil {
		return nil, fmt.Errorf("notes timezone: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.Suffix, cfg.Vault.Exclude)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	app.svc, err = noteservice.NewService(store, noteservice.Options{
		IndexPath:   cfg.Index.Path,
		JournalPath: cfg.Index.JournalPath,
		PageSize:    cfg.Index.PageSize,
		Location:    loc,
		Indexer: indexer.Options{
			Identity: indexer.Identity(cfg.Index.Identity),
			Stemming: cfg.Index.Stemming(),
			Defaults: models.Defaults{Location: loc, Author: cfg.Notes.DefaultAuthor},
		},
	}, app.logger)
	if err != nil {
		return nil, err
	}

	app.logger.Debug("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("index_path", cfg.Index.Path),
		slog.String("identity", cfg.Index.Identity),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return app, nil
}

// NewLogger builds the structured logger described by cfg.
func NewLogger(w io.Writer, cfg ApplicationConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger { return a.logger }

func (a *Application) printReport(verb string, r *indexer.Report) {
	fmt.Fprintf(a.stdout, "%s %d, skipped %d, removed %d, failed %d\n",
		verb, r.Indexed, r.Skipped, r.Removed, len(r.Failures))
	for _, f := range r.Failures {
		fmt.Fprintf(a.stdout, "  %s\n", f)
	}
}

// Index indexes every note under dir, relative to the vault root.
func (a *Application) Index(ctx context.Context, dir string) error {
	report, err := a.svc.IndexTree(ctx, dir)
	if report != nil {
		a.printReport("Indexed", report)
	}
	return err
}

// Sync brings the index up to date with the vault.
func (a *Application) Sync(ctx context.Context) error {
	report, err := a.svc.Sync(ctx)
	if report != nil {
		a.printReport("Synced", report)
	}
	return err
}

// Failures prints the files whose last index attempt failed.
func (a *Application) Failures(ctx context.Context) error {
	entries, err := a.svc.Failures(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(a.stdout, "%s [%s] %s: %s\n",
			e.Path, e.Kind, e.UpdatedAt.Local().Format(time.DateTime), e.Message)
	}
	fmt.Fprintf(a.stdout, "%d failing\n", len(entries))
	return nil
}

// Search renders the outline for req to stdout, or into the vault file
// output when it is set.
func (a *Application) Search(ctx context.Context, req noteservice.SearchRequest, output string) error {
	lines, err := a.svc.Outline(ctx, req)
	if err != nil {
		return err
	}
	if output != "" {
		if err := a.svc.WriteOutline(output, lines); err != nil {
			return err
		}
		a.logger.Info("search: outline written", slog.String("path", output))
		return nil
	}
	_, err = io.WriteString(a.stdout, strings.Join(lines, "\n")+"\n")
	return err
}

// Tags prints the tags across req's matches, one per line.
func (a *Application) Tags(ctx context.Context, req noteservice.SearchRequest) error {
	tags, err := a.svc.Tags(ctx, req)
	if err != nil {
		return err
	}
	for _, t := range tags {
		fmt.Fprintln(a.stdout, t)
	}
	return nil
}

// Watch syncs once, then follows vault changes until ctx is cancelled.
// Each change opens its own writer, so other commands may write between
// events.
func (a *Application) Watch(ctx context.Context) error {
	if _, err := a.svc.Sync(ctx); err != nil {
		a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return indexer.Watch(ctx, a.svc.Store(), a.svc, a.logger, func(kind, path string) {
		a.logger.Info("watch: "+kind, slog.String("path", path))
	})
}

// ServeMCP serves the MCP tools over stdio.
func (a *Application) ServeMCP(ctx context.Context) error {
	if _, err := a.svc.Sync(ctx); err != nil {
		a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return mcpserver.New(a.svc, a.version).ServeStdio()
}

// Serve runs the HTTP API and the vault watcher until a signal arrives or
// ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	cfg := a.config
	logger := a.logger

	if _, err := a.svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		n, err := a.svc.Count(req.Context())
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":"unavailable","error":%q}`, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","documents":%d}`, n)
	})

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	r.Mount("/api", api.NewRouter(a.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return indexer.Watch(gCtx, a.svc.Store(), a.svc, logger, func(kind, path string) {
			logger.Info("watch: "+kind, slog.String("path", path))
			broker.PublishIndexEvent(kind, path)
		})
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
