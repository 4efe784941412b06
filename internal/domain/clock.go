package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DateOf truncates t to its calendar date at 00:00 UTC, keeping wall-clock
// fields as they are.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date according to c.
func Today(c clockwork.Clock) time.Time {
	return DateOf(c.Now())
}
