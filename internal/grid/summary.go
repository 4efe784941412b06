package grid

import (
	"time"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
)

// Summary describes how completely a merged series covers its grid.
type Summary struct {
	TotalRows       int     `json:"total_rows"`
	ExpectedRows    int     `json:"expected_rows"`
	MissingRows     int     `json:"missing_rows"`
	CoveragePercent float64 `json:"coverage_percent"`
	DateRange       string  `json:"date_range"`
	TimestampField  string  `json:"timestamp_field"`
}

// Summarize counts rows whose every non-timestamp field is missing and derives
// the coverage percentage against the expected grid size. It is read-only.
func Summarize(merged domain.Series, timestampField string, r DateRange, interval time.Duration) Summary {
	expected := len(BuildCanonicalGrid(r, interval))
	dataCols := merged.DataColumns(timestampField)

	missing := 0
	for _, rec := range merged.Records {
		if rec.AllMissing(dataCols) {
			missing++
		}
	}

	coverage := 0.0
	if expected > 0 {
		coverage = float64(merged.Len()-missing) / float64(expected) * 100
	}

	return Summary{
		TotalRows:       merged.Len(),
		ExpectedRows:    expected,
		MissingRows:     missing,
		CoveragePercent: coverage,
		DateRange:       r.String(),
		TimestampField:  timestampField,
	}
}
