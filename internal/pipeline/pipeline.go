package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/meteo"
	"github.com/couchcryptid/biobasis-merge/internal/observability"
	"github.com/couchcryptid/biobasis-merge/internal/toa5"
)

var (
	// ErrNoInputFiles is returned when no daily file exists for the range.
	ErrNoInputFiles = errors.New("no input files found in the specified date range")
	// ErrNoFilesLoaded is returned when every existing file failed to parse.
	ErrNoFilesLoaded = errors.New("failed to load any data files")
	// ErrSinkUnavailable marks a sink error that retrying will not fix,
	// such as an open circuit breaker.
	ErrSinkUnavailable = errors.New("sink unavailable")
)

// Sink receives the merged series of a completed run.
type Sink interface {
	Name() string
	Write(ctx context.Context, run *Run) error
}

// Preparer is implemented by sinks that must check their destination before
// any input is read, for example to refuse overwriting earlier output.
type Preparer interface {
	Prepare(ctx context.Context, r grid.DateRange) error
}

// Describer is implemented by sinks that can name where a run will be written.
type Describer interface {
	Destinations(r grid.DateRange) []string
}

// Settings fixes where input is read from and how it is gridded.
type Settings struct {
	InputDir   string
	FilePrefix string
	StationID  string
	Interval   time.Duration
	Workers    int
	Solver     meteo.SolverOptions

	// PublishAttempts bounds retries for publishers. Zero means 3.
	PublishAttempts int
	// PublishBackoff is the first retry delay. Zero means 500ms.
	PublishBackoff time.Duration
}

// Request selects the dates of one run.
type Request struct {
	Range  grid.DateRange
	DryRun bool
}

// Pipeline runs extract, transform and load for one date range at a time.
type Pipeline struct {
	settings   Settings
	sinks      []Sink
	publishers []Sink
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	ready      atomic.Bool
}

// New creates a Pipeline. A failing sink aborts the run; a failing publisher
// is retried, then logged and recorded in the report.
func New(settings Settings, sinks, publishers []Sink, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	if settings.Interval <= 0 {
		settings.Interval = grid.DefaultInterval
	}
	if settings.PublishAttempts <= 0 {
		settings.PublishAttempts = 3
	}
	if settings.PublishBackoff <= 0 {
		settings.PublishBackoff = 500 * time.Millisecond
	}
	return &Pipeline{
		settings:   settings,
		sinks:      sinks,
		publishers: publishers,
		logger:     logger,
		metrics:    metrics,
		clock:      clock,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a merge run yet")
	}
	return nil
}

// Run merges every daily file in req.Range onto the canonical grid, enriches
// it and hands the result to the sinks. Structural failures are returned;
// per-file and per-record problems are absorbed and counted in the report.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	start := p.clock.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: start,
		Range:     req.Range,
		InputDir:  p.settings.InputDir,
		DryRun:    req.DryRun,
	}
	logger := p.logger.With("run_id", report.RunID, "date_range", req.Range.String())
	logger.Info("merge run started", "dry_run", req.DryRun)

	err := p.run(ctx, req, report, logger)
	report.FinishedAt = p.clock.Now()

	switch {
	case err != nil:
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("merge run failed", "error", err)
		return report, err
	case req.DryRun:
		p.metrics.RunsTotal.WithLabelValues("dry_run").Inc()
	default:
		p.metrics.RunsTotal.WithLabelValues("success").Inc()
		p.metrics.RunDuration.Observe(report.FinishedAt.Sub(start).Seconds())
		p.metrics.PipelineReady.Set(1)
		p.ready.Store(true)
	}
	logger.Info("merge run finished", "duration", report.FinishedAt.Sub(start))
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, report *Report, logger *slog.Logger) error {
	if req.Range.Days() == 0 {
		return fmt.Errorf("empty date range %s", req.Range)
	}

	for _, s := range p.allSinks() {
		if d, ok := s.(Describer); ok {
			report.Outputs = append(report.Outputs, Output{Sink: s.Name(), Destinations: d.Destinations(req.Range)})
		}
		if pr, ok := s.(Preparer); ok {
			if err := pr.Prepare(ctx, req.Range); err != nil {
				return err
			}
		}
	}

	files, err := p.extract(ctx, req, report, logger)
	if err != nil || req.DryRun {
		return err
	}

	run, err := p.transform(files, req.Range, report, logger)
	if err != nil {
		return err
	}
	run.ID = report.RunID
	run.CreatedAt = report.StartedAt

	return p.load(ctx, run, report, logger)
}

// extract discovers the daily files for the range and loads those present.
func (p *Pipeline) extract(ctx context.Context, req Request, report *Report, logger *slog.Logger) ([]toa5.File, error) {
	expected := toa5.ExpectedFiles(p.settings.InputDir, p.settings.FilePrefix, p.settings.StationID, req.Range.Dates())
	existing, missing, err := toa5.CheckExistence(expected)
	if err != nil {
		return nil, err
	}
	report.Existing = existing
	report.Missing = missing
	p.metrics.FilesFound.Set(float64(len(existing)))
	p.metrics.FilesMissing.Set(float64(len(missing)))
	logger.Info("file discovery", "found", len(existing), "missing", len(missing))

	if len(existing) == 0 {
		return nil, ErrNoInputFiles
	}
	if req.DryRun {
		return nil, nil
	}

	files, err := toa5.LoadAll(ctx, existing, logger)
	if err != nil {
		return nil, err
	}
	report.FilesLoaded = len(files)
	if failed := len(existing) - len(files); failed > 0 {
		p.metrics.FilesFailed.Add(float64(failed))
	}
	if len(files) == 0 {
		return nil, ErrNoFilesLoaded
	}
	return files, nil
}

// load writes run to every sink, then to every publisher.
func (p *Pipeline) load(ctx context.Context, run *Run, report *Report, logger *slog.Logger) error {
	for _, s := range p.sinks {
		err := p.write(ctx, s, run)
		report.setOutcome(s.Name(), err)
		if err != nil {
			return fmt.Errorf("write %s: %w", s.Name(), err)
		}
		logger.Info("sink written", "sink", s.Name())
	}

	for _, s := range p.publishers {
		err := p.publish(ctx, s, run, logger)
		report.setOutcome(s.Name(), err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("publish failed, continuing", "sink", s.Name(), "error", err)
			continue
		}
		logger.Info("published", "sink", s.Name())
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, s Sink, run *Run, logger *slog.Logger) error {
	backoff := p.settings.PublishBackoff
	maxBackoff := 8 * backoff

	var err error
	for attempt := 1; attempt <= p.settings.PublishAttempts; attempt++ {
		if err = p.write(ctx, s, run); err == nil {
			return nil
		}
		if attempt == p.settings.PublishAttempts || errors.Is(err, ErrSinkUnavailable) {
			break
		}
		logger.Warn("publish attempt failed", "sink", s.Name(), "attempt", attempt, "error", err)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
	return err
}

func (p *Pipeline) write(ctx context.Context, s Sink, run *Run) error {
	start := time.Now()
	err := s.Write(ctx, run)
	p.metrics.SinkDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	p.metrics.SinkWrites.WithLabelValues(s.Name(), outcome).Inc()
	return err
}

func (p *Pipeline) allSinks() []Sink {
	out := make([]Sink, 0, len(p.sinks)+len(p.publishers))
	out = append(out, p.sinks...)
	return append(out, p.publishers...)
}
