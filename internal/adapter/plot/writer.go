// Package plot renders the merged series as interactive HTML charts.
package plot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/biobasis-merge/internal/adapter/outfile"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

// ErrInvalidOutput is returned when a rendered page is missing, empty or
// does not reference the chart library.
var ErrInvalidOutput = errors.New("plot output is invalid")

// Paths are the pages written for one date range.
type Paths struct {
	Series  string
	Summary string
}

// Writer renders a time-series page and a coverage summary page.
// It implements pipeline.Sink, pipeline.Preparer and pipeline.Describer.
type Writer struct {
	dir       string
	prefix    string
	station   string
	overwrite bool
	maxPoints int
	logger    *slog.Logger
}

// NewWriter creates a Writer for dir. maxPoints bounds the rows drawn per
// chart; zero means DefaultMaxPoints.
func NewWriter(dir, prefix, station string, overwrite bool, maxPoints int, logger *slog.Logger) *Writer {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Writer{dir: dir, prefix: prefix, station: station, overwrite: overwrite, maxPoints: maxPoints, logger: logger}
}

func (w *Writer) Name() string { return "plot" }

// Paths returns the output pages for r.
func (w *Writer) Paths(r grid.DateRange) Paths {
	base := filepath.Join(w.dir, fmt.Sprintf("%s_%s_merged_%s_plots", w.prefix, w.station, r.Compact()))
	return Paths{Series: base + ".html", Summary: base + "_summary.html"}
}

func (w *Writer) Destinations(r grid.DateRange) []string {
	p := w.Paths(r)
	return []string{p.Series, p.Summary}
}

// Prepare fails with outfile.ErrOutputExists when a page for r is already on
// disk, unless the writer was created with overwrite.
func (w *Writer) Prepare(_ context.Context, r grid.DateRange) error {
	return outfile.CheckOverwrite(w.overwrite, w.Destinations(r))
}

// Write renders both pages and checks the time-series page afterwards.
func (w *Writer) Write(ctx context.Context, run *pipeline.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	paths := w.Paths(run.Range)

	var plotted, stride int
	if err := outfile.WriteAtomic(paths.Series, func(out io.Writer) (err error) {
		plotted, stride, err = RenderSeries(out, run.Series, run.TimestampField, w.maxPoints)
		return err
	}); err != nil {
		return err
	}
	if stride > 1 {
		w.logger.Info("downsampled plot data", "rows", run.Series.Len(), "stride", stride)
	}
	if plotted == 0 {
		w.logger.Warn("no numeric columns found for plotting", "path", paths.Series)
	}
	if err := Validate(paths.Series); err != nil {
		return err
	}
	w.logger.Info("saved plots", "path", paths.Series, "variables", plotted)

	if err := outfile.WriteAtomic(paths.Summary, func(out io.Writer) error {
		return RenderSummary(out, run.Summary)
	}); err != nil {
		return err
	}
	w.logger.Info("saved summary plot", "path", paths.Summary)
	return nil
}

// Validate checks that path exists, is non-empty and loads ECharts within
// its first kilobyte.
func Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: read %s: %v", ErrInvalidOutput, path, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidOutput, path)
	}
	if !strings.Contains(strings.ToLower(string(head[:n])), "echarts") {
		return fmt.Errorf("%w: %s does not load echarts", ErrInvalidOutput, path)
	}
	return nil
}
