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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/chatnotes/internal/api"
	"github.com/starford/chatnotes/internal/index"
	"github.com/starford/chatnotes/internal/llm"
	"github.com/starford/chatnotes/internal/mcpserver"
	"github.com/starford/chatnotes/internal/noteservice"
	"github.com/starford/chatnotes/internal/observability"
	"github.com/starford/chatnotes/internal/sse"
	"github.com/starford/chatnotes/internal/storage"
)

const sseKeepAlive = 15 * time.Second

// components are the long-lived pieces shared by the HTTP and MCP modes.
type components struct {
	store   *storage.FS
	db      *index.DB
	metrics *observability.Metrics
	gateway *llm.Gateway
	svc     *noteservice.Service
}

func (c *components) Close() {
	if c.db != nil {
		_ = c.db.Close()
	}
}

func newApplication(opts []Option, defaultOutput io.Writer) (*application, *slog.Logger, error) {
	app := &application{version: "dev", logOutput: defaultOutput}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// build wires storage, the catalog, metrics, the model gateway and the note
// service. publisher may be nil.
func (a *application) build(logger *slog.Logger, reg *prometheus.Registry, publisher noteservice.Publisher) (*components, error) {
	cfg := a.config
	c := &components{}

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	c.store = store

	if cfg.Index.Enabled {
		db, err := index.Open(cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		c.db = db
		if err := index.Sync(db, store, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	if reg != nil {
		c.metrics = observability.NewMetrics(cfg.Metrics.Namespace, reg)
	}

	c.gateway = llm.New(cfg.LLM.Gateway(cfg.Pipeline.EnableFallbackProtocol), c.metrics, logger)

	svcOpts := []noteservice.Option{
		noteservice.WithLogger(logger),
		noteservice.WithMetrics(c.metrics),
	}
	if c.db != nil {
		svcOpts = append(svcOpts, noteservice.WithCatalog(c.db))
	}
	if publisher != nil {
		svcOpts = append(svcOpts, noteservice.WithPublisher(publisher))
	}
	c.svc = noteservice.NewService(store, c.gateway, cfg.Pipeline.Service(), svcOpts...)
	return c, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.Bool("use_local_llm", cfg.LLM.UseLocal),
		slog.String("model", cfg.LLM.ActiveModel()),
		slog.Bool("index_enabled", cfg.Index.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	broker := sse.NewBroker(sseKeepAlive)
	defer broker.Close()

	c, err := app.build(logger, reg, broker)
	if err != nil {
		return err
	}
	defer c.Close()

	serverCfg := api.ServerConfig{
		CORSOrigins: cfg.App.CORSOrigins,
		Vault:       c.store.Root(),
		Model:       c.gateway.Model(),
		Events:      broker,
	}
	if c.metrics != nil {
		serverCfg.Metrics = c.metrics.Handler()
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           api.NewServer(c.svc, serverCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// Keep the catalog in step with edits made in the note app.
	if c.db != nil {
		g.Go(func() error {
			err := index.Watch(gCtx, c.db, c.store, logger, broker.PublishChange)
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		logger.Info("Shutting down server...")

		// Close SSE streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher.
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}

	c, err := app.build(logger, nil, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("MCP server starting",
		slog.String("vault_path", c.store.Root()),
		slog.String("model", c.gateway.Model()))

	return mcpserver.New(c.svc, app.version).ServeStdio()
}
