package grid

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
)

const (
	tsCol    = "TIMESTAMP"
	valueCol = "value"
)

var day1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(hh, mm int) time.Time {
	return day1.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

func rec(ts time.Time, v float64) domain.Record {
	return domain.Record{Timestamp: ts, Fields: map[string]domain.Value{valueCol: domain.Num(v)}}
}

func series(records ...domain.Record) domain.Series {
	return domain.Series{Columns: []string{tsCol, valueCol}, Records: records}
}

func values(s domain.Series) []domain.Value {
	out := make([]domain.Value, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Get(valueCol)
	}
	return out
}

func TestConcatenate(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := Concatenate(nil)
		require.ErrorIs(t, err, domain.ErrEmptyInput)
	})

	t.Run("preserves file and row order", func(t *testing.T) {
		a := series(rec(at(1, 0), 1), rec(at(0, 0), 2))
		b := series(rec(at(0, 30), 3))

		got, err := Concatenate([]domain.Series{a, b})
		require.NoError(t, err)
		assert.Equal(t, []domain.Value{domain.Num(1), domain.Num(2), domain.Num(3)}, values(got))
	})

	t.Run("unions columns in first-seen order", func(t *testing.T) {
		a := domain.Series{Columns: []string{tsCol, "a"}}
		b := domain.Series{Columns: []string{tsCol, "b", "a"}}

		got, err := Concatenate([]domain.Series{a, b})
		require.NoError(t, err)
		assert.Equal(t, []string{tsCol, "a", "b"}, got.Columns)
	})
}

func TestSortByTimestamp(t *testing.T) {
	t.Run("stable ascending", func(t *testing.T) {
		in := series(rec(at(1, 0), 1), rec(at(0, 0), 2), rec(at(1, 0), 3), rec(at(0, 30), 4))

		got, err := SortByTimestamp(in, tsCol)
		require.NoError(t, err)
		assert.Equal(t, []domain.Value{domain.Num(2), domain.Num(4), domain.Num(1), domain.Num(3)}, values(got))
		assert.Equal(t, domain.Num(1), in.Records[0].Get(valueCol), "input must not be reordered")
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := SortByTimestamp(series(), "DateTime")
		var mfe *domain.MissingFieldError
		require.ErrorAs(t, err, &mfe)
		assert.Equal(t, "DateTime", mfe.Field)
	})
}

func TestDeduplicate(t *testing.T) {
	t.Run("first wins", func(t *testing.T) {
		in := series(rec(at(0, 0), 1), rec(at(0, 0), 4), rec(at(0, 30), 2), rec(at(0, 30), 5), rec(at(0, 30), 6))

		got, dropped, err := Deduplicate(in, tsCol)
		require.NoError(t, err)
		assert.Equal(t, 3, dropped)
		assert.Equal(t, []domain.Value{domain.Num(1), domain.Num(2)}, values(got))
	})

	t.Run("no duplicates", func(t *testing.T) {
		in := series(rec(at(0, 0), 1), rec(at(0, 30), 2))

		got, dropped, err := Deduplicate(in, tsCol)
		require.NoError(t, err)
		assert.Zero(t, dropped)
		assert.Equal(t, 2, got.Len())
	})

	t.Run("missing field", func(t *testing.T) {
		_, _, err := Deduplicate(series(), "time")
		require.ErrorIs(t, err, domain.ErrMissingField)
	})
}

func TestBuildCanonicalGrid(t *testing.T) {
	t.Run("single day", func(t *testing.T) {
		slots := BuildCanonicalGrid(NewDateRange(day1, day1), DefaultInterval)
		require.Len(t, slots, 48)
		assert.Equal(t, at(0, 0), slots[0])
		assert.Equal(t, at(23, 30), slots[47])
	})

	t.Run("multi day", func(t *testing.T) {
		for _, days := range []int{2, 7, 31} {
			end := day1.AddDate(0, 0, days-1)
			slots := BuildCanonicalGrid(NewDateRange(day1, end), DefaultInterval)
			assert.Len(t, slots, 48*days)
			assert.Equal(t, end.Add(23*time.Hour+30*time.Minute), slots[len(slots)-1])
		}
	})

	t.Run("strictly ascending at interval", func(t *testing.T) {
		slots := BuildCanonicalGrid(NewDateRange(day1, day1.AddDate(0, 0, 2)), DefaultInterval)
		for i := 1; i < len(slots); i++ {
			assert.Equal(t, DefaultInterval, slots[i].Sub(slots[i-1]))
		}
	})

	t.Run("other intervals", func(t *testing.T) {
		r := NewDateRange(day1, day1)
		assert.Len(t, BuildCanonicalGrid(r, time.Hour), 24)
		assert.Len(t, BuildCanonicalGrid(r, 10*time.Minute), 144)
	})

	t.Run("range start time of day is ignored", func(t *testing.T) {
		slots := BuildCanonicalGrid(NewDateRange(at(13, 17), at(13, 17)), DefaultInterval)
		assert.Equal(t, at(0, 0), slots[0])
	})

	t.Run("degenerate inputs", func(t *testing.T) {
		assert.Empty(t, BuildCanonicalGrid(NewDateRange(day1, day1.AddDate(0, 0, -1)), DefaultInterval))
		assert.Empty(t, BuildCanonicalGrid(NewDateRange(day1, day1), 0))
	})
}

func TestReindex(t *testing.T) {
	slots := BuildCanonicalGrid(NewDateRange(day1, day1), DefaultInterval)

	t.Run("fills gaps with missing", func(t *testing.T) {
		in := series(rec(at(0, 30), 2), rec(at(23, 30), 9))

		got, err := Reindex(in, tsCol, slots)
		require.NoError(t, err)
		require.Len(t, got.Records, 48)
		assert.True(t, got.Records[0].Get(valueCol).IsMissing())
		assert.Equal(t, domain.Num(2), got.Records[1].Get(valueCol))
		assert.Equal(t, domain.Num(9), got.Records[47].Get(valueCol))
		for i, r := range got.Records {
			assert.Equal(t, slots[i], r.Timestamp)
		}
	})

	t.Run("off-grid and out-of-range records are not placed", func(t *testing.T) {
		in := series(rec(at(0, 15), 1), rec(day1.AddDate(0, 0, 1), 2))

		got, err := Reindex(in, tsCol, slots)
		require.NoError(t, err)
		assert.Len(t, got.Records, 48)
		for _, r := range got.Records {
			assert.True(t, r.Get(valueCol).IsMissing())
		}
	})

	t.Run("does not share field maps with input", func(t *testing.T) {
		in := series(rec(at(0, 0), 1))

		got, err := Reindex(in, tsCol, slots)
		require.NoError(t, err)
		got.Records[0].Fields[valueCol] = domain.Num(100)
		assert.Equal(t, domain.Num(1), in.Records[0].Get(valueCol))
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := Reindex(series(), "DateTime", slots)
		require.ErrorIs(t, err, domain.ErrMissingField)
	})
}

func TestMerge(t *testing.T) {
	oneDay := NewDateRange(day1, day1)

	t.Run("empty input", func(t *testing.T) {
		_, err := Merge(nil, oneDay, DefaultInterval)
		require.ErrorIs(t, err, domain.ErrEmptyInput)

		_, err = Merge([]domain.Series{}, NewDateRange(day1, day1.AddDate(0, 0, 9)), DefaultInterval)
		require.ErrorIs(t, err, domain.ErrEmptyInput)
	})

	t.Run("invalid interval", func(t *testing.T) {
		_, err := Merge([]domain.Series{series()}, oneDay, 0)
		require.ErrorIs(t, err, ErrInvalidInterval)
	})

	t.Run("first wins across and within files", func(t *testing.T) {
		a := series(rec(at(0, 0), 1), rec(at(0, 30), 2))
		b := series(rec(at(1, 0), 3), rec(at(0, 0), 4), rec(at(1, 0), 9))

		res, err := Merge([]domain.Series{a, b}, oneDay, DefaultInterval)
		require.NoError(t, err)

		got := values(res.Series)
		require.Len(t, got, 48)
		want := make([]domain.Value, 48)
		want[0], want[1], want[2] = domain.Num(1), domain.Num(2), domain.Num(3)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("merged values mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, tsCol, res.TimestampField)
		assert.Equal(t, 5, res.InputRows)
		assert.Equal(t, 2, res.Duplicates)
		assert.Zero(t, res.Unplaced)
	})

	t.Run("length equals grid regardless of sparsity", func(t *testing.T) {
		r := NewDateRange(day1, day1.AddDate(0, 0, 4))
		res, err := Merge([]domain.Series{series(rec(at(12, 0), 1))}, r, DefaultInterval)
		require.NoError(t, err)
		assert.Len(t, res.Series.Records, len(BuildCanonicalGrid(r, DefaultInterval)))
	})

	t.Run("counts records outside the range", func(t *testing.T) {
		in := series(rec(at(0, 0), 1), rec(day1.AddDate(0, 0, -1), 2), rec(at(0, 10), 3))
		res, err := Merge([]domain.Series{in}, oneDay, DefaultInterval)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Unplaced)
	})

	t.Run("timestamp column absent from a later series", func(t *testing.T) {
		a := series(rec(at(0, 0), 1))
		b := domain.Series{Columns: []string{"DateTime", valueCol}}

		_, err := Merge([]domain.Series{a, b}, oneDay, DefaultInterval)
		var mfe *domain.MissingFieldError
		require.ErrorAs(t, err, &mfe)
		assert.Equal(t, tsCol, mfe.Field)
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		a := series(rec(at(1, 0), 1), rec(at(0, 0), 2))
		_, err := Merge([]domain.Series{a}, oneDay, DefaultInterval)
		require.NoError(t, err)
		assert.Equal(t, at(1, 0), a.Records[0].Timestamp)
		assert.Equal(t, []string{tsCol, valueCol}, a.Columns)
	})
}

func TestDateRange(t *testing.T) {
	r := NewDateRange(day1, time.Date(2024, 1, 3, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, 3, r.Days())
	assert.Equal(t, "2024-01-01 to 2024-01-03", r.String())
	assert.Equal(t, "20240101-20240103", r.Compact())
	assert.Equal(t, []time.Time{day1, day1.AddDate(0, 0, 1), day1.AddDate(0, 0, 2)}, r.Dates())
	assert.Zero(t, NewDateRange(day1, day1.AddDate(0, 0, -1)).Days())
}
