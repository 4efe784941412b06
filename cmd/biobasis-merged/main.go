// Command biobasis-merged runs the merge on a schedule and serves health,
// readiness, status and metrics endpoints.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/biobasis-merge/internal/adapter/http"
	"github.com/couchcryptid/biobasis-merge/internal/app"
	"github.com/couchcryptid/biobasis-merge/internal/config"
	"github.com/couchcryptid/biobasis-merge/internal/observability"
	"github.com/couchcryptid/biobasis-merge/internal/scheduler"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scheduled runs cover the same trailing days again, so earlier output is replaced.
	a, err := app.Build(ctx, cfg, app.Options{Overwrite: true}, logger, metrics, clock)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(a.Pipeline, cfg.ScheduleInterval, cfg.LookbackDays, clock, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, a, a.Status(sched), logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduled merges.
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		stop()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	_ = a.Close()

	logger.Info("shutdown complete")
}
