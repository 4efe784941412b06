// Package app assembles the merge pipeline and its sinks from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/biobasis-merge/internal/adapter/breaker"
	csvadapter "github.com/couchcryptid/biobasis-merge/internal/adapter/csv"
	"github.com/couchcryptid/biobasis-merge/internal/adapter/influx"
	kafkaadapter "github.com/couchcryptid/biobasis-merge/internal/adapter/kafka"
	"github.com/couchcryptid/biobasis-merge/internal/adapter/plot"
	"github.com/couchcryptid/biobasis-merge/internal/adapter/sqlite"
	"github.com/couchcryptid/biobasis-merge/internal/config"
	"github.com/couchcryptid/biobasis-merge/internal/observability"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
	"github.com/couchcryptid/biobasis-merge/internal/scheduler"
)

const storedStatusTimeout = 2 * time.Second

type readinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

type closer struct {
	name  string
	close func() error
}

// Options adjusts how the sinks behave.
type Options struct {
	// Overwrite lets the CSV and plot sinks replace output from an earlier run.
	Overwrite bool
}

// App is a wired pipeline plus the resources it holds open.
type App struct {
	Pipeline *pipeline.Pipeline
	Sinks    []string

	checkers []readinessChecker
	closers  []closer
	store    *sqlite.Store
	station  string
	logger   *slog.Logger
}

// Build opens every configured sink and creates the pipeline. The CSV sink
// is always present; plots and SQLite are sinks and Kafka and InfluxDB are
// publishers behind circuit breakers.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) (*App, error) {
	a := &App{logger: logger, station: cfg.StationID}

	sinks := []pipeline.Sink{
		csvadapter.NewWriter(cfg.OutputDir, cfg.FilePrefix, cfg.StationID, opts.Overwrite, logger),
	}
	if cfg.Plots {
		sinks = append(sinks, plot.NewWriter(cfg.OutputDir, cfg.FilePrefix, cfg.StationID, opts.Overwrite, cfg.PlotMaxPoints, logger))
	}

	if cfg.SQLiteEnabled() {
		store, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		sinks = append(sinks, store)
		a.store = store
		a.checkers = append(a.checkers, store)
		a.closers = append(a.closers, closer{"sqlite", store.Close})
		logger.Info("sqlite sink enabled", "path", cfg.SQLitePath)
	}

	var publishers []pipeline.Sink
	if cfg.KafkaEnabled() {
		w := kafkaadapter.NewWriter(cfg, logger)
		b := breaker.Wrap(w, breaker.Options{}, logger)
		publishers = append(publishers, b)
		a.checkers = append(a.checkers, b)
		a.closers = append(a.closers, closer{"kafka", w.Close})
		logger.Info("kafka publisher enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.InfluxEnabled() {
		w := influx.NewWriter(cfg, logger)
		b := breaker.Wrap(w, breaker.Options{}, logger)
		publishers = append(publishers, b)
		a.checkers = append(a.checkers, b)
		a.closers = append(a.closers, closer{"influx", w.Close})
		logger.Info("influx publisher enabled", "url", cfg.InfluxURL, "bucket", cfg.InfluxBucket)
	}

	for _, s := range append(append([]pipeline.Sink{}, sinks...), publishers...) {
		a.Sinks = append(a.Sinks, s.Name())
	}

	a.Pipeline = pipeline.New(pipeline.Settings{
		InputDir:   cfg.InputDir,
		FilePrefix: cfg.FilePrefix,
		StationID:  cfg.StationID,
		Interval:   cfg.Interval,
		Workers:    cfg.Workers,
	}, sinks, publishers, logger, metrics, clock)
	a.checkers = append([]readinessChecker{a.Pipeline}, a.checkers...)
	return a, nil
}

// CheckReadiness reports every failing component.
func (a *App) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range a.checkers {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases every opened sink, logging failures.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.close(); err != nil {
			a.logger.Error("close error", "sink", c.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// StatusSource reports the last run of the service.
type StatusSource interface {
	Status() any
}

// Status returns a StatusSource that reports live first and, until live has
// recorded a run, the latest run stored in SQLite for the configured station.
func (a *App) Status(live StatusSource) StatusSource {
	return &status{live: live, app: a}
}

type status struct {
	live StatusSource
	app  *App
}

func (s *status) Status() any {
	if st := s.live.Status(); st != nil {
		return st
	}
	if s.app.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storedStatusTimeout)
	defer cancel()
	run, err := s.app.store.LatestRun(ctx, s.app.station)
	if err != nil {
		if !errors.Is(err, sqlite.ErrNoRuns) {
			s.app.logger.Warn("read stored run", "error", err)
		}
		return nil
	}
	return &scheduler.Status{
		RunID:           run.ID,
		DateRange:       fmt.Sprintf("%s to %s", run.DateStart, run.DateEnd),
		StartedAt:       run.CreatedAt,
		Outcome:         "success",
		TotalRows:       run.TotalRows,
		MissingRows:     run.MissingRows,
		CoveragePercent: run.CoveragePercent,
		Source:          "sqlite",
	}
}
