package grid

import (
	"fmt"
	"time"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
)

// DefaultInterval is the logger table interval.
const DefaultInterval = 30 * time.Minute

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates start and end to calendar dates.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: domain.DateOf(start), End: domain.DateOf(end)}
}

// Days returns the number of calendar days covered, 0 when End precedes Start.
func (r DateRange) Days() int {
	start, end := domain.DateOf(r.Start), domain.DateOf(r.End)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start)/(24*time.Hour)) + 1
}

// Dates lists every calendar date in the range.
func (r DateRange) Dates() []time.Time {
	n := r.Days()
	out := make([]time.Time, n)
	start := domain.DateOf(r.Start)
	for i := range n {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// String renders the range as "2024-01-01 to 2024-01-03".
func (r DateRange) String() string {
	return fmt.Sprintf("%s to %s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

// Compact renders the range as "20240101-20240103" for file names.
func (r DateRange) Compact() string {
	return r.Start.Format("20060102") + "-" + r.End.Format("20060102")
}
