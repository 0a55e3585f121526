package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"proposals/internal/platform/config"
	"proposals/internal/platform/httpserver"
	"proposals/internal/platform/logger"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "proposals:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	srv := httpserver.New(cfg.Addr, app.router)

	// Workers outlive the signal so queued notifications can drain.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	app.dispatcher.Start(workerCtx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting proposals server",
			"addr", cfg.Addr,
			"storage", app.storage,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if err := app.dispatcher.Shutdown(shutdownCtx); err != nil {
			log.Warn("notification queue not drained", "error", err)
			cancelWorkers()
		}
		return nil
	})
	return g.Wait()
}
