// Command validate checks a merged CSV produced by biobasis-merge: the row
// count matches the grid, timestamps are unique, ascending and on the grid,
// derived columns agree with a fresh recomputation, and the metadata file
// lists every column.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv output/Biobasis_MM1_merged_20240601-20240607.csv \
//	  -interval 30m
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/biobasis-merge/internal/config"
	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/meteo"
	"github.com/couchcryptid/biobasis-merge/internal/toa5"
)

// maxErrorsPerPhase caps the detail printed for a failing phase.
const maxErrorsPerPhase = 20

var rangeInName = regexp.MustCompile(`_merged_(\d{8})-(\d{8})\.csv$`)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	csvPath := fs.String("csv", "", "merged CSV to check")
	metaPath := fs.String("metadata", "", "metadata CSV (default: derived from -csv)")
	start := fs.String("start", "", "first date (default: parsed from the file name)")
	end := fs.String("end", "", "last date (default: parsed from the file name)")
	interval := fs.Duration("interval", grid.DefaultInterval, "grid interval")
	tolerance := fs.Float64("tolerance", 1e-6, "absolute tolerance for derived columns")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *csvPath == "" {
		fs.Usage()
		return 2
	}
	if *metaPath == "" {
		*metaPath = strings.TrimSuffix(*csvPath, ".csv") + "_metadata.csv"
	}

	r, err := dateRange(*csvPath, *start, *end)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "=== Merged Output Validation ===")
	fmt.Fprintf(stdout, "File: %s\nRange: %s  Interval: %s\n\n", *csvPath, r, *interval)

	series, tsField, err := loadMerged(*csvPath)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: load merged CSV: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateGrid(series, r, *interval),
		validateDerived(series, tsField, *tolerance),
		validateMetadata(*metaPath, series),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(stdout, "  %-42s %s\n", p.name, status)
	}
	fmt.Fprintf(stdout, "\nRows: %d  Columns: %d\n", series.Len(), len(series.Columns))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(stdout, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrorsPerPhase {
				fmt.Fprintf(stdout, "  ... and %d more\n", len(p.errors)-maxErrorsPerPhase)
				break
			}
			fmt.Fprintf(stdout, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(stdout, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(stdout, "\nValidation FAILED.")
	return 1
}

func dateRange(path, start, end string) (grid.DateRange, error) {
	if start == "" || end == "" {
		m := rangeInName.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			return grid.DateRange{}, errors.New("cannot infer date range from file name; pass -start and -end")
		}
		if start == "" {
			start = m[1]
		}
		if end == "" {
			end = m[2]
		}
	}
	cfg := config.Config{DateStart: start, DateEnd: end}
	return cfg.DateRange()
}

// ── Data loading ──

func loadMerged(path string) (domain.Series, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Series{}, "", err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return domain.Series{}, "", err
	}
	if len(all) == 0 {
		return domain.Series{}, "", fmt.Errorf("%s is empty", path)
	}

	header := all[0]
	tsField, _, err := domain.TimestampColumn(header)
	if err != nil {
		return domain.Series{}, "", err
	}
	s := domain.Series{Columns: header, Records: make([]domain.Record, 0, len(all)-1)}
	for i, row := range all[1:] {
		rec := domain.Record{Fields: make(map[string]domain.Value, len(header))}
		for j, c := range header {
			if j >= len(row) {
				break
			}
			if c == tsField {
				ts, ok := toa5.ParseTimestamp(row[j])
				if !ok {
					return domain.Series{}, "", fmt.Errorf("line %d: bad timestamp %q", i+2, row[j])
				}
				rec.Timestamp = ts
				continue
			}
			rec.Fields[c] = toa5.ParseValue(row[j])
		}
		s.Records = append(s.Records, rec)
	}
	return s, tsField, nil
}

// ── Phase 1: Grid ──

func validateGrid(s domain.Series, r grid.DateRange, interval time.Duration) *phase {
	p := &phase{name: "Phase 1: Grid (rows and timestamps)"}

	slots := grid.BuildCanonicalGrid(r, interval)
	if s.Len() != len(slots) {
		p.errorf("row count: expected %d (%d days x %d slots), got %d",
			len(slots), r.Days(), len(slots)/max(r.Days(), 1), s.Len())
	}
	for i, rec := range s.Records {
		if i > 0 && !rec.Timestamp.After(s.Records[i-1].Timestamp) {
			p.errorf("line %d: timestamp %s not after %s", i+2,
				rec.Timestamp.Format(domain.TimestampLayout), s.Records[i-1].Timestamp.Format(domain.TimestampLayout))
		}
		if i < len(slots) && !rec.Timestamp.Equal(slots[i]) {
			p.errorf("line %d: timestamp %s, expected grid slot %s", i+2,
				rec.Timestamp.Format(domain.TimestampLayout), slots[i].Format(domain.TimestampLayout))
		}
	}
	return p
}

// ── Phase 2: Derived columns ──

func validateDerived(s domain.Series, tsField string, tolerance float64) *phase {
	p := &phase{name: "Phase 2: Derived columns (recomputed)"}

	for _, c := range domain.DerivedColumns {
		if !s.HasColumn(c) {
			p.errorf("derived column %s missing", c)
		}
	}
	if !p.passed() {
		return p
	}

	fresh := domain.Series{Records: make([]domain.Record, len(s.Records))}
	for _, c := range s.Columns {
		if c != tsField && !isDerived(c) {
			fresh.Columns = append(fresh.Columns, c)
		}
	}
	for i, rec := range s.Records {
		fields := make(map[string]domain.Value, len(fresh.Columns))
		for _, c := range fresh.Columns {
			fields[c] = rec.Get(c)
		}
		fresh.Records[i] = domain.Record{Timestamp: rec.Timestamp, Fields: fields}
	}
	meteo.Enrich(&fresh, meteo.EnrichOptions{})

	for i, rec := range s.Records {
		for _, c := range domain.DerivedColumns {
			got, want := rec.Get(c), fresh.Records[i].Get(c)
			switch {
			case got.Valid != want.Valid:
				p.errorf("line %d %s: got %s, recomputed %s", i+2, c, got, want)
			case got.Valid && math.Abs(got.Float-want.Float) > tolerance:
				p.errorf("line %d %s: got %s, recomputed %s", i+2, c, got, want)
			}
		}
	}
	return p
}

func isDerived(c string) bool { return slices.Contains(domain.DerivedColumns, c) }

// ── Phase 3: Metadata ──

func validateMetadata(path string, s domain.Series) *phase {
	p := &phase{name: "Phase 3: Metadata (column coverage)"}

	f, err := os.Open(path)
	if err != nil {
		p.errorf("open metadata: %v", err)
		return p
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		p.errorf("read metadata: %v", err)
		return p
	}
	if len(rows) == 0 || strings.Join(rows[0], ",") != "column_name,unit,statistic" {
		p.errorf("metadata header must be column_name,unit,statistic")
		return p
	}

	listed := make(map[string]bool, len(rows))
	for _, row := range rows[1:] {
		if len(row) > 0 {
			listed[row[0]] = true
		}
	}
	for _, c := range s.Columns {
		if !listed[c] {
			p.errorf("column %s not listed in metadata", c)
		}
	}
	return p
}
