package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"autosales-dashboard/internal/charts"
	"autosales-dashboard/internal/config"
	"autosales-dashboard/internal/middleware"
	"autosales-dashboard/internal/observability"
	"autosales-dashboard/internal/server"
	"autosales-dashboard/internal/services"
)

const (
	version        = "1.0.0"
	csvLoadTimeout = 30 * time.Second
)

// newHandler wraps the routes in the middleware chain. The outermost
// middleware runs first.
func newHandler(srv http.Handler, cfg *config.Config, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	return middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)(srv)
}

func main() {
	if err := run(); err != nil {
		slog.Error("dashboard exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("autosales dashboard starting",
		"version", version,
		"addr", cfg.Address(),
		"source_url", cfg.Source.URL,
		"source_file", cfg.Source.File,
		"cache_dir", cfg.Source.CacheDir,
	)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), csvLoadTimeout)
	dataset, err := services.NewLoader(cfg.Source, logger).Load(loadCtx)
	cancelLoad()
	if err != nil {
		return fmt.Errorf("load sales data: %w", err)
	}

	logger = logger.With("dataset", dataset.Source())
	srv := server.NewServer(services.NewReports(dataset, logger), charts.NewRenderer(logger), logger)

	limiter := middleware.NewRateLimiter(cfg.Security)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go limiter.Run(sweepCtx)

	gs := server.NewGracefulServer(&http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(srv, cfg, limiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, logger, cfg.Server)
	gs.RegisterShutdownHook(func(context.Context) error {
		stopSweep()
		logger.Debug("rate limiter stopped", "tracked_clients", limiter.Len())
		return nil
	})

	if err := gs.ListenAndServe(context.Background()); err != nil {
		return err
	}
	logger.Info("autosales dashboard stopped")
	return nil
}
