package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

type mockRunner struct {
	mu     sync.Mutex
	reqs   []pipeline.Request
	report *pipeline.Report
	err    error
}

func (m *mockRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return m.report, m.err
}

func (m *mockRunner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reqs)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func date(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

func TestWindow(t *testing.T) {
	s := New(&mockRunner{}, time.Hour, 3, clockwork.NewFakeClock(), discard())

	w := s.Window(time.Date(2024, 6, 10, 0, 15, 0, 0, time.UTC))
	assert.Equal(t, grid.NewDateRange(date(7), date(9)), w)
	assert.Equal(t, 3, w.Days())
}

func TestWindow_LookbackAtLeastOne(t *testing.T) {
	s := New(&mockRunner{}, time.Hour, 0, clockwork.NewFakeClock(), discard())

	w := s.Window(time.Date(2024, 6, 10, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, grid.NewDateRange(date(9), date(9)), w)
}

func TestRunOnce_RecordsStatus(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 10, 1, 0, 0, 0, time.UTC))
	runner := &mockRunner{report: &pipeline.Report{
		RunID:   "run-1",
		Summary: grid.Summary{TotalRows: 48, MissingRows: 2, CoveragePercent: 95.83},
		Outputs: []pipeline.Output{{Sink: "csv", Written: true}, {Sink: "kafka", Err: errors.New("down")}},
	}}
	s := New(runner, time.Hour, 1, clock, discard())

	assert.Nil(t, s.Status())

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, runner.reqs, 1)
	assert.Equal(t, grid.NewDateRange(date(9), date(9)), runner.reqs[0].Range)
	assert.False(t, runner.reqs[0].DryRun)

	st, ok := s.Status().(*Status)
	require.True(t, ok)
	assert.Equal(t, "run-1", st.RunID)
	assert.Equal(t, "success", st.Outcome)
	assert.Equal(t, "2024-06-09 to 2024-06-09", st.DateRange)
	assert.InDelta(t, 95.83, st.CoveragePercent, 1e-9)
	assert.Equal(t, []string{"kafka"}, st.FailedSinks)
}

func TestRunOnce_RecordsError(t *testing.T) {
	runner := &mockRunner{report: &pipeline.Report{RunID: "run-2"}, err: pipeline.ErrNoInputFiles}
	s := New(runner, time.Hour, 1, clockwork.NewFakeClock(), discard())

	_, err := s.RunOnce(context.Background())
	require.ErrorIs(t, err, pipeline.ErrNoInputFiles)

	st := s.Status().(*Status)
	assert.Equal(t, "error", st.Outcome)
	assert.Equal(t, pipeline.ErrNoInputFiles.Error(), st.Error)
}

func TestRunOnce_AdvancesWithClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 10, 1, 0, 0, 0, time.UTC))
	runner := &mockRunner{report: &pipeline.Report{}}
	s := New(runner, time.Hour, 2, clock, discard())

	_, _ = s.RunOnce(context.Background())
	clock.Advance(24 * time.Hour)
	_, _ = s.RunOnce(context.Background())

	require.Len(t, runner.reqs, 2)
	assert.Equal(t, grid.NewDateRange(date(8), date(9)), runner.reqs[0].Range)
	assert.Equal(t, grid.NewDateRange(date(9), date(10)), runner.reqs[1].Range)
}

func TestStart_RunsImmediately(t *testing.T) {
	runner := &mockRunner{report: &pipeline.Report{}}
	s := New(runner, time.Hour, 1, clockwork.NewRealClock(), discard())

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	assert.Eventually(t, func() bool { return runner.calls() == 1 }, 2*time.Second, 10*time.Millisecond)
}
