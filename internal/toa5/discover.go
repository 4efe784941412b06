package toa5

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Expected is a daily file that should exist for a date.
type Expected struct {
	Date time.Time
	Path string
}

// FileName returns the daily file name for date.
func FileName(prefix, station string, date time.Time) string {
	return fmt.Sprintf("%s_%s_%s.dat", prefix, station, date.Format("20060102"))
}

// ExpectedFiles lists one file per date, in date order.
func ExpectedFiles(dir, prefix, station string, dates []time.Time) []Expected {
	out := make([]Expected, len(dates))
	for i, d := range dates {
		out[i] = Expected{Date: d, Path: filepath.Join(dir, FileName(prefix, station, d))}
	}
	return out
}

// CheckExistence splits expected into files present on disk and files that
// are not. Order is preserved in both.
func CheckExistence(expected []Expected) (existing, missing []Expected, err error) {
	for _, e := range expected {
		info, statErr := os.Stat(e.Path)
		switch {
		case statErr == nil && !info.IsDir():
			existing = append(existing, e)
		case statErr == nil, errors.Is(statErr, fs.ErrNotExist):
			missing = append(missing, e)
		default:
			return nil, nil, fmt.Errorf("stat %s: %w", e.Path, statErr)
		}
	}
	return existing, missing, nil
}

// LoadAll reads every file in order. A file that fails to parse is logged and
// skipped; only context cancellation aborts the load.
func LoadAll(ctx context.Context, files []Expected, logger *slog.Logger) ([]File, error) {
	loaded := make([]File, 0, len(files))
	for _, e := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := ReadFile(e.Path)
		if err != nil {
			logger.Warn("skipping unreadable file", "path", e.Path, "error", err)
			continue
		}
		if f.TimestampGuessed {
			logger.Warn("no standard timestamp column, using first column",
				"path", e.Path, "column", f.TimestampField)
		}
		if f.SkippedRows > 0 {
			logger.Warn("rows with unparsable timestamps skipped",
				"path", e.Path, "rows", f.SkippedRows)
		}
		logger.Debug("file loaded", "path", e.Path, "rows", f.Series.Len())
		loaded = append(loaded, f)
	}
	logger.Info("files loaded", "loaded", len(loaded), "requested", len(files))
	return loaded, nil
}
