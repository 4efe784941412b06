// Command biobasis-merge merges the daily TOA5 files of a date range onto a
// regular time grid, adds derived meteorological columns and writes the
// result to the configured sinks.
//
// Usage:
//
//	biobasis-merge --config config.yaml [--dry-run] [--overwrite] [--log-level INFO]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/biobasis-merge/internal/app"
	"github.com/couchcryptid/biobasis-merge/internal/config"
	"github.com/couchcryptid/biobasis-merge/internal/observability"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

var logLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("biobasis-merge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML configuration file")
	dryRun := fs.Bool("dry-run", false, "show what would be processed without writing anything")
	overwrite := fs.Bool("overwrite", false, "overwrite existing output files")
	logLevel := fs.String("log-level", "", "log level: "+strings.Join(logLevels, ", "))
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := merge(ctx, *configPath, *dryRun, *overwrite, *logLevel, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func merge(ctx context.Context, configPath string, dryRun, overwrite bool, logLevel string, stdout, stderr io.Writer) error {
	if logLevel != "" && !slices.Contains(logLevels, strings.ToUpper(logLevel)) {
		return fmt.Errorf("invalid --log-level %q: must be one of %s", logLevel, strings.Join(logLevels, ", "))
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = strings.ToLower(logLevel)
	}
	logger := observability.NewTextLogger(stderr, cfg.LogLevel)

	r, err := cfg.DateRange()
	if err != nil {
		return err
	}
	logger.Info("starting biobasis merge", "config", configPath, "date_range", r.String())

	a, err := app.Build(ctx, cfg, app.Options{Overwrite: overwrite}, logger,
		observability.NewMetricsWith(prometheus.NewRegistry()), clockwork.NewRealClock())
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // close errors are logged

	report, err := a.Pipeline.Run(ctx, pipeline.Request{Range: r, DryRun: dryRun})
	if err != nil {
		return err
	}
	report.Print(stdout)
	if failed := report.Failed(); len(failed) > 0 {
		names := make([]string, len(failed))
		for i, o := range failed {
			names[i] = o.Sink
		}
		logger.Warn("some publishers failed", "sinks", names)
	}
	return nil
}
