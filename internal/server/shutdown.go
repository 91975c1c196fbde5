package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"autosales-dashboard/internal/config"
)

const hookTimeout = 10 * time.Second

// ShutdownHook releases a resource when the server stops. Hooks run
// concurrently with the HTTP drain.
type ShutdownHook func(ctx context.Context) error

// GracefulServer runs an http.Server until a signal or context cancellation,
// then drains it and runs the registered hooks within ShutdownTimeout.
type GracefulServer struct {
	srv    *http.Server
	logger *slog.Logger
	cfg    config.ServerConfig

	mu    sync.Mutex
	hooks []ShutdownHook
}

func NewGracefulServer(srv *http.Server, logger *slog.Logger, cfg config.ServerConfig) *GracefulServer {
	return &GracefulServer{srv: srv, logger: logger, cfg: cfg}
}

func (gs *GracefulServer) RegisterShutdownHook(hook ShutdownHook) {
	gs.mu.Lock()
	gs.hooks = append(gs.hooks, hook)
	gs.mu.Unlock()
}

// ListenAndServe blocks until the listener fails or ctx is done. SIGINT and
// SIGTERM cancel ctx.
func (gs *GracefulServer) ListenAndServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		gs.logger.Info("listening", "addr", gs.srv.Addr,
			"read_timeout", gs.cfg.ReadTimeout, "write_timeout", gs.cfg.WriteTimeout)
		listenErr <- gs.srv.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", gs.srv.Addr, err)
	case <-ctx.Done():
	}

	gs.logger.Info("shutting down", "cause", context.Cause(ctx), "timeout", gs.cfg.ShutdownTimeout)
	drainCtx, cancel := context.WithTimeout(context.Background(), gs.cfg.ShutdownTimeout)
	defer cancel()
	return gs.shutdown(drainCtx)
}

// shutdown drains the server and runs every hook, returning the first error.
// It gives up when ctx expires even if hooks are still running.
func (gs *GracefulServer) shutdown(ctx context.Context) error {
	gs.mu.Lock()
	hooks := slices.Clone(gs.hooks)
	gs.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		if err := gs.srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("drain http server: %w", err)
		}
		return nil
	})
	for i, hook := range hooks {
		g.Go(func() error {
			hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)
			defer cancel()
			if err := hook(hookCtx); err != nil {
				return fmt.Errorf("shutdown hook %d: %w", i, err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			gs.logger.Error("shutdown incomplete", "error", err)
			return err
		}
		gs.logger.Info("shutdown complete")
		return nil
	case <-ctx.Done():
		gs.logger.Warn("shutdown timed out", "timeout", gs.cfg.ShutdownTimeout)
		return ctx.Err()
	}
}
