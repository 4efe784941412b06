package pipeline

import (
	"log/slog"
	"time"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/metadata"
	"github.com/couchcryptid/biobasis-merge/internal/meteo"
	"github.com/couchcryptid/biobasis-merge/internal/toa5"
)

// Run is a merged and enriched date range, as handed to sinks. Sinks must
// treat it as read-only.
type Run struct {
	ID             string
	CreatedAt      time.Time
	Station        string
	Range          grid.DateRange
	Interval       time.Duration
	TimestampField string
	Series         domain.Series
	Metadata       metadata.Table
	Summary        grid.Summary
}

// transform consolidates metadata, merges the files onto the grid and adds
// the derived meteorological columns.
func (p *Pipeline) transform(files []toa5.File, r grid.DateRange, report *Report, logger *slog.Logger) (*Run, error) {
	headers := make([]toa5.Header, len(files))
	series := make([]domain.Series, len(files))
	for i, f := range files {
		headers[i] = f.Header
		series[i] = f.Series
	}

	report.Inconsistencies = metadata.Validate(headers)
	for _, inc := range report.Inconsistencies {
		logger.Warn("metadata inconsistency", "detail", inc.String())
	}
	table := metadata.Consolidate(headers).WithDerived()

	merged, err := grid.Merge(series, r, p.settings.Interval)
	if err != nil {
		return nil, err
	}
	report.InputRows = merged.InputRows
	report.Duplicates = merged.Duplicates
	report.Unplaced = merged.Unplaced
	p.metrics.DuplicatesDropped.Add(float64(merged.Duplicates))
	if merged.Duplicates > 0 {
		logger.Warn("duplicate timestamps dropped, first occurrence kept", "count", merged.Duplicates)
	}
	if merged.Unplaced > 0 {
		logger.Warn("records off the grid dropped", "count", merged.Unplaced, "interval", p.settings.Interval)
	}

	stats := meteo.Enrich(&merged.Series, meteo.EnrichOptions{Workers: p.settings.Workers, Solver: p.settings.Solver})
	report.Enrich = stats
	for status, n := range stats.Solver {
		p.metrics.WetBulbSolves.WithLabelValues(status.String()).Add(float64(n))
	}
	if len(stats.AbsentColumns) > 0 {
		logger.Warn("source columns absent, derived values will be missing", "columns", stats.AbsentColumns)
	}

	summary := grid.Summarize(merged.Series, merged.TimestampField, r, p.settings.Interval)
	report.Summary = summary
	p.metrics.RowsMerged.Set(float64(summary.TotalRows))
	p.metrics.MissingSlots.Set(float64(summary.MissingRows))
	p.metrics.CoveragePercent.Set(summary.CoveragePercent)
	logger.Info("merge complete",
		"rows", summary.TotalRows,
		"missing_rows", summary.MissingRows,
		"coverage_percent", summary.CoveragePercent,
		"duplicates", merged.Duplicates,
	)

	return &Run{
		Station:        p.settings.StationID,
		Range:          r,
		Interval:       p.settings.Interval,
		TimestampField: merged.TimestampField,
		Series:         merged.Series,
		Metadata:       table,
		Summary:        summary,
	}, nil
}
