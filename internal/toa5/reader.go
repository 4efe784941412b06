package toa5

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
)

// timestampLayouts are tried in order for every data row.
var timestampLayouts = []string{
	domain.TimestampLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
}

// File is one parsed daily file.
type File struct {
	Path           string
	Header         Header
	Series         domain.Series
	TimestampField string
	// TimestampGuessed is true when no known timestamp alias matched and the
	// first column was used instead.
	TimestampGuessed bool
	// SkippedRows counts data rows dropped for an unparsable timestamp.
	SkippedRows int
}

// ReadFile opens and parses path.
func ReadFile(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	file, err := Read(f)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	file.Path = path
	return file, nil
}

// Read parses a TOA5 stream. Numeric cells that fail to parse, including the
// logger's NAN marker, become missing values.
func Read(r io.Reader) (File, error) {
	cr := newCSVReader(r)
	h, err := parseHeader(cr)
	if err != nil {
		return File{}, err
	}

	tsField, known, err := domain.TimestampColumn(h.Columns)
	if err != nil {
		return File{}, err
	}
	tsIdx := indexOf(h.Columns, tsField)

	file := File{
		Header:           h,
		TimestampField:   tsField,
		TimestampGuessed: !known,
		Series:           domain.Series{Columns: append([]string(nil), h.Columns...)},
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return File{}, fmt.Errorf("read data row: %w", err)
		}
		if isBlank(rec) {
			continue
		}

		ts, ok := ParseTimestamp(cell(rec, tsIdx))
		if !ok {
			file.SkippedRows++
			continue
		}

		fields := make(map[string]domain.Value, len(h.Columns)-1)
		for i, col := range h.Columns {
			if i == tsIdx {
				continue
			}
			fields[col] = ParseValue(cell(rec, i))
		}
		file.Series.Records = append(file.Series.Records, domain.Record{Timestamp: ts, Fields: fields})
	}
	return file, nil
}

// ParseTimestamp parses a logger timestamp as naive UTC wall-clock time.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseValue converts a data cell to a Value. Anything that is not a finite
// number is missing.
func ParseValue(s string) domain.Value {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return domain.Missing
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.Missing
	}
	return domain.Num(f)
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
