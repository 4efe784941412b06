// Package scheduler runs the merge pipeline periodically over a trailing
// window of complete days.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

// Runner executes one merge.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
}

// Status summarises the most recent scheduled run.
type Status struct {
	RunID           string    `json:"run_id"`
	DateRange       string    `json:"date_range"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Outcome         string    `json:"outcome"`
	Error           string    `json:"error,omitempty"`
	FilesFound      int       `json:"files_found"`
	FilesMissing    int       `json:"files_missing"`
	TotalRows       int       `json:"total_rows"`
	MissingRows     int       `json:"missing_rows"`
	CoveragePercent float64   `json:"coverage_percent"`
	FailedSinks     []string  `json:"failed_sinks,omitempty"`
	// Source is "sqlite" when the status was read back from storage.
	Source string `json:"source,omitempty"`
}

// Scheduler triggers a merge of [today-lookback, today-1] every interval.
type Scheduler struct {
	cron     *gocron.Scheduler
	runner   Runner
	clock    clockwork.Clock
	interval time.Duration
	lookback int
	logger   *slog.Logger

	mu   sync.Mutex
	last *Status
}

// New creates a Scheduler. lookback is the number of complete days merged
// on each tick and must be at least 1.
func New(runner Runner, interval time.Duration, lookback int, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()
	return &Scheduler{
		cron:     cron,
		runner:   runner,
		clock:    clock,
		interval: interval,
		lookback: max(lookback, 1),
		logger:   logger,
	}
}

// Window returns the date range merged when triggered at now.
func (s *Scheduler) Window(now time.Time) grid.DateRange {
	today := domain.DateOf(now)
	return grid.NewDateRange(today.AddDate(0, 0, -s.lookback), today.AddDate(0, 0, -1))
}

// Start schedules the job and runs it once immediately. Jobs stop when ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.Every(s.interval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled merge failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule merge job: %w", err)
	}
	s.logger.Info("scheduler started", "interval", s.interval, "lookback_days", s.lookback)
	s.cron.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce merges the current window and records its status.
func (s *Scheduler) RunOnce(ctx context.Context) (*pipeline.Report, error) {
	window := s.Window(s.clock.Now())
	s.logger.Info("scheduled merge triggered", "date_range", window.String())

	report, err := s.runner.Run(ctx, pipeline.Request{Range: window})
	s.record(window, report, err)
	return report, err
}

func (s *Scheduler) record(window grid.DateRange, report *pipeline.Report, err error) {
	st := &Status{DateRange: window.String(), Outcome: "success"}
	if report != nil {
		st.RunID = report.RunID
		st.StartedAt = report.StartedAt
		st.FinishedAt = report.FinishedAt
		st.FilesFound = len(report.Existing)
		st.FilesMissing = len(report.Missing)
		st.TotalRows = report.Summary.TotalRows
		st.MissingRows = report.Summary.MissingRows
		st.CoveragePercent = report.Summary.CoveragePercent
		for _, o := range report.Failed() {
			st.FailedSinks = append(st.FailedSinks, o.Sink)
		}
	}
	if err != nil {
		st.Outcome = "error"
		st.Error = err.Error()
	}

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
}

// Status returns the last recorded status, or nil before the first run.
func (s *Scheduler) Status() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}
