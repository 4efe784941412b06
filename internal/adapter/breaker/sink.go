// Package breaker guards pipeline sinks with a circuit breaker so that a
// destination that keeps failing is skipped until it has had time to recover.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

// Options tunes when the breaker opens and how long it stays open.
type Options struct {
	// ConsecutiveFailures trips the breaker. Defaults to 5.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open. Defaults to 2m.
	Timeout time.Duration
}

// Sink wraps a pipeline.Sink. Writes made while the breaker is open fail
// immediately with pipeline.ErrSinkUnavailable.
type Sink struct {
	inner   pipeline.Sink
	circuit *gobreaker.CircuitBreaker
}

// Wrap returns inner guarded by a circuit breaker named after it.
func Wrap(inner pipeline.Sink, opts Options, logger *slog.Logger) *Sink {
	if opts.ConsecutiveFailures == 0 {
		opts.ConsecutiveFailures = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "sink", name, "from", from.String(), "to", to.String())
		},
	})
	return &Sink{inner: inner, circuit: cb}
}

func (s *Sink) Name() string { return s.inner.Name() }

// State reports the breaker state: "closed", "half-open" or "open".
func (s *Sink) State() string { return s.circuit.State().String() }

func (s *Sink) Write(ctx context.Context, run *pipeline.Run) error {
	_, err := s.circuit.Execute(func() (interface{}, error) {
		return nil, s.inner.Write(ctx, run)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", pipeline.ErrSinkUnavailable, s.inner.Name(), err)
	}
	return err
}

// Destinations forwards to the wrapped sink when it implements pipeline.Describer.
func (s *Sink) Destinations(r grid.DateRange) []string {
	if d, ok := s.inner.(pipeline.Describer); ok {
		return d.Destinations(r)
	}
	return nil
}

// CheckReadiness reports an open breaker as not ready.
func (s *Sink) CheckReadiness(_ context.Context) error {
	if s.circuit.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s: circuit breaker open", s.inner.Name())
	}
	return nil
}
