package pipeline

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/meteo"
	"github.com/couchcryptid/biobasis-merge/internal/toa5"
)

func TestThousands(t *testing.T) {
	tests := map[int]string{
		0:        "0",
		12:       "12",
		999:      "999",
		1000:     "1,000",
		17520:    "17,520",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for in, want := range tests {
		assert.Equal(t, want, thousands(in), in)
	}
}

func TestReport_Print(t *testing.T) {
	start := time.Date(2024, 6, 4, 8, 0, 0, 0, time.UTC)
	var missing []toa5.Expected
	for d := 3; d <= 9; d++ {
		missing = append(missing, toa5.Expected{Date: time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)})
	}

	r := &Report{
		RunID:       "run-1",
		StartedAt:   start,
		FinishedAt:  start.Add(1500 * time.Millisecond),
		Range:       grid.NewDateRange(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)),
		InputDir:    "/data/in",
		Existing:    make([]toa5.Expected, 2),
		Missing:     missing,
		FilesLoaded: 2,
		InputRows:   96,
		Summary: grid.Summary{
			TotalRows: 432, ExpectedRows: 432, MissingRows: 336,
			CoveragePercent: 22.2222, TimestampField: "TIMESTAMP",
		},
		Enrich: meteo.EnrichStats{Records: 432, Solver: map[meteo.SolverStatus]int{meteo.Converged: 90, meteo.Undefined: 342}},
		Outputs: []Output{
			{Sink: "csv", Destinations: []string{"/out/a.csv", "/out/a_metadata.csv"}, Written: true},
			{Sink: "kafka", Err: errors.New("broker down")},
		},
	}

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()

	for _, want := range []string{
		"BIOBASIS MERGE PROCESSING SUMMARY",
		"Date range: 2024-06-01 to 2024-06-09",
		"Duration: 1.5s",
		"Expected files: 9",
		"Missing file dates: 20240603, 20240604, 20240605, 20240606, 20240607",
		"... and 2 more",
		"Total rows: 432",
		"Missing timestamps: 336",
		"Data coverage: 22.2%",
		"converged: 90",
		"undefined: 342",
		"✓ CSV: /out/a.csv, /out/a_metadata.csv",
		"✗ KAFKA: kafka (broker down)",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "bounds_exceeded")
}
