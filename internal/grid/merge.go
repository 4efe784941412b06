package grid

import (
	"errors"
	"slices"
	"time"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
)

// ErrInvalidInterval is returned when the sampling interval is not positive.
var ErrInvalidInterval = errors.New("grid interval must be positive")

// Result is the outcome of Merge. Besides the merged series it carries the
// counts a caller needs to report on the run.
type Result struct {
	Series         domain.Series
	TimestampField string

	// InputRows is the number of records across all inputs.
	InputRows int
	// Duplicates is the number of records dropped by first-wins deduplication.
	Duplicates int
	// Unplaced counts deduplicated records whose timestamp matched no grid slot.
	Unplaced int
}

// Concatenate joins series in input order. The resulting schema is the union
// of all input columns in first-seen order.
func Concatenate(series []domain.Series) (domain.Series, error) {
	if len(series) == 0 {
		return domain.Series{}, domain.ErrEmptyInput
	}

	total := 0
	for _, s := range series {
		total += s.Len()
	}

	out := domain.Series{Records: make([]domain.Record, 0, total)}
	for _, s := range series {
		for _, c := range s.Columns {
			out.AddColumn(c)
		}
		out.Records = append(out.Records, s.Records...)
	}
	return out, nil
}

// SortByTimestamp returns a copy of s stably sorted by ascending timestamp.
func SortByTimestamp(s domain.Series, timestampField string) (domain.Series, error) {
	if !s.HasColumn(timestampField) {
		return domain.Series{}, &domain.MissingFieldError{Field: timestampField}
	}

	records := slices.Clone(s.Records)
	slices.SortStableFunc(records, func(a, b domain.Record) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return domain.Series{Columns: slices.Clone(s.Columns), Records: records}, nil
}

// Deduplicate keeps the first record seen for each timestamp and drops the
// rest. It returns the number of dropped records.
func Deduplicate(s domain.Series, timestampField string) (domain.Series, int, error) {
	if !s.HasColumn(timestampField) {
		return domain.Series{}, 0, &domain.MissingFieldError{Field: timestampField}
	}

	seen := make(map[int64]struct{}, len(s.Records))
	records := make([]domain.Record, 0, len(s.Records))
	for _, r := range s.Records {
		key := r.Timestamp.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		records = append(records, r)
	}
	return domain.Series{Columns: slices.Clone(s.Columns), Records: records}, len(s.Records) - len(records), nil
}

// BuildCanonicalGrid returns every slot from the first date at 00:00:00 up to,
// but excluding, 00:00:00 on the day after the last date. It depends only on
// the range and interval, never on data.
func BuildCanonicalGrid(r DateRange, interval time.Duration) []time.Time {
	days := r.Days()
	if interval <= 0 || days == 0 {
		return nil
	}

	start := domain.DateOf(r.Start)
	stop := start.AddDate(0, 0, days)
	slots := make([]time.Time, 0, int(stop.Sub(start)/interval)+1)
	for t := start; t.Before(stop); t = t.Add(interval) {
		slots = append(slots, t)
	}
	return slots
}

// Reindex maps s onto slots by exact timestamp. Each slot gets a copy of the
// matching record, or a record with every field missing. The output always has
// len(slots) records.
func Reindex(s domain.Series, timestampField string, slots []time.Time) (domain.Series, error) {
	out, _, err := reindex(s, timestampField, slots)
	return out, err
}

func reindex(s domain.Series, timestampField string, slots []time.Time) (domain.Series, int, error) {
	if !s.HasColumn(timestampField) {
		return domain.Series{}, 0, &domain.MissingFieldError{Field: timestampField}
	}

	// s is expected to be deduplicated; should it not be, the first record wins.
	byTime := make(map[int64]domain.Record, len(s.Records))
	for _, r := range s.Records {
		key := r.Timestamp.UnixNano()
		if _, ok := byTime[key]; !ok {
			byTime[key] = r
		}
	}

	matched := 0
	records := make([]domain.Record, len(slots))
	for i, slot := range slots {
		src, ok := byTime[slot.UnixNano()]
		if !ok {
			records[i] = domain.Record{Timestamp: slot, Fields: map[string]domain.Value{}}
			continue
		}
		matched++
		rec := src.Clone()
		rec.Timestamp = slot
		records[i] = rec
	}
	return domain.Series{Columns: slices.Clone(s.Columns), Records: records}, matched, nil
}

// Merge concatenates, sorts, deduplicates and reindexes series onto the
// canonical grid for r. The timestamp column is resolved from the header of
// the first series and must be present in every series.
func Merge(series []domain.Series, r DateRange, interval time.Duration) (Result, error) {
	if len(series) == 0 {
		return Result{}, domain.ErrEmptyInput
	}
	if interval <= 0 {
		return Result{}, ErrInvalidInterval
	}

	tsField, _, err := domain.TimestampColumn(series[0].Columns)
	if err != nil {
		return Result{}, err
	}
	for _, s := range series {
		if !s.HasColumn(tsField) {
			return Result{}, &domain.MissingFieldError{Field: tsField}
		}
	}

	concatenated, err := Concatenate(series)
	if err != nil {
		return Result{}, err
	}
	sorted, err := SortByTimestamp(concatenated, tsField)
	if err != nil {
		return Result{}, err
	}
	deduped, dropped, err := Deduplicate(sorted, tsField)
	if err != nil {
		return Result{}, err
	}
	merged, matched, err := reindex(deduped, tsField, BuildCanonicalGrid(r, interval))
	if err != nil {
		return Result{}, err
	}

	return Result{
		Series:         merged,
		TimestampField: tsField,
		InputRows:      concatenated.Len(),
		Duplicates:     dropped,
		Unplaced:       deduped.Len() - matched,
	}, nil
}
