package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/biobasis-merge/internal/adapter/outfile"
	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/metadata"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

// ErrOutputExists is returned by Prepare when output from an earlier run is
// present and overwriting was not requested.
var ErrOutputExists = outfile.ErrOutputExists

// Paths are the files written for one date range.
type Paths struct {
	Data     string
	Metadata string
}

// Writer writes the merged series and its column metadata as CSV files.
// It implements pipeline.Sink, pipeline.Preparer and pipeline.Describer.
type Writer struct {
	dir       string
	prefix    string
	station   string
	overwrite bool
	logger    *slog.Logger
}

// NewWriter creates a Writer for dir. Files are named
// <prefix>_<station>_merged_<YYYYMMDD-YYYYMMDD>.csv.
func NewWriter(dir, prefix, station string, overwrite bool, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, prefix: prefix, station: station, overwrite: overwrite, logger: logger}
}

func (w *Writer) Name() string { return "csv" }

// Paths returns the output files for r.
func (w *Writer) Paths(r grid.DateRange) Paths {
	base := filepath.Join(w.dir, fmt.Sprintf("%s_%s_merged_%s", w.prefix, w.station, r.Compact()))
	return Paths{Data: base + ".csv", Metadata: base + "_metadata.csv"}
}

func (w *Writer) Destinations(r grid.DateRange) []string {
	p := w.Paths(r)
	return []string{p.Data, p.Metadata}
}

// Prepare fails with ErrOutputExists when any output for r is already on disk,
// unless the writer was created with overwrite.
func (w *Writer) Prepare(_ context.Context, r grid.DateRange) error {
	return outfile.CheckOverwrite(w.overwrite, w.Destinations(r))
}

// Write creates the output directory when needed and writes both files. Each
// file is written to a temporary name first and renamed into place.
func (w *Writer) Write(ctx context.Context, run *pipeline.Run) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	paths := w.Paths(run.Range)

	if err := outfile.WriteAtomic(paths.Data, func(out io.Writer) error {
		return WriteSeries(ctx, out, run.Series, run.TimestampField)
	}); err != nil {
		return err
	}
	w.logger.Info("saved merged csv", "path", paths.Data, "rows", run.Series.Len())

	if err := outfile.WriteAtomic(paths.Metadata, func(out io.Writer) error {
		return WriteMetadata(out, run.Metadata)
	}); err != nil {
		return err
	}
	w.logger.Info("saved metadata csv", "path", paths.Metadata, "columns", len(run.Metadata))
	return nil
}

// WriteSeries writes s with a header row in schema order. Timestamps use
// domain.TimestampLayout and missing values are written as NaN.
func WriteSeries(ctx context.Context, out io.Writer, s domain.Series, timestampField string) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(s.Columns); err != nil {
		return err
	}

	row := make([]string, len(s.Columns))
	for i, rec := range s.Records {
		if i%4096 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		for j, c := range s.Columns {
			if c == timestampField {
				row[j] = rec.Timestamp.Format(domain.TimestampLayout)
				continue
			}
			row[j] = rec.Get(c).String()
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMetadata writes t with the header column_name,unit,statistic.
func WriteMetadata(out io.Writer, t metadata.Table) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"column_name", "unit", "statistic"}); err != nil {
		return err
	}
	for _, r := range t {
		if err := cw.Write([]string{r.Column, r.Unit, r.Statistic}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
