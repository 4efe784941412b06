package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/metadata"
	"github.com/couchcryptid/biobasis-merge/internal/meteo"
	"github.com/couchcryptid/biobasis-merge/internal/toa5"
)

// maxListedMissing caps the missing dates printed in a report.
const maxListedMissing = 5

// Output records what happened at one sink.
type Output struct {
	Sink         string
	Destinations []string
	Written      bool
	Err          error
}

// Report describes one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Range      grid.DateRange
	InputDir   string
	DryRun     bool

	Existing    []toa5.Expected
	Missing     []toa5.Expected
	FilesLoaded int

	InputRows  int
	Duplicates int
	Unplaced   int

	Inconsistencies []metadata.Inconsistency
	Summary         grid.Summary
	Enrich          meteo.EnrichStats
	Outputs         []Output
}

func (r *Report) setOutcome(sink string, err error) {
	for i := range r.Outputs {
		if r.Outputs[i].Sink == sink {
			r.Outputs[i].Written = err == nil
			r.Outputs[i].Err = err
			return
		}
	}
	r.Outputs = append(r.Outputs, Output{Sink: sink, Written: err == nil, Err: err})
}

// Failed returns the outputs whose write did not succeed.
func (r *Report) Failed() []Output {
	var out []Output
	for _, o := range r.Outputs {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Print renders the human-readable processing summary.
func (r *Report) Print(w io.Writer) {
	rule := strings.Repeat("=", 60)
	p := func(format string, args ...any) { fmt.Fprintf(w, format+"\n", args...) }

	if r.DryRun {
		p("\nDRY RUN - Would process %d files", len(r.Existing))
		p("Missing %d files", len(r.Missing))
		for _, o := range r.Outputs {
			for _, d := range o.Destinations {
				p("Would write %s: %s", strings.ToUpper(o.Sink), d)
			}
		}
		return
	}

	p("\n%s", rule)
	p("BIOBASIS MERGE PROCESSING SUMMARY")
	p("%s", rule)

	p("\nRun:")
	p("  ID: %s", r.RunID)
	p("  Input directory: %s", r.InputDir)
	p("  Date range: %s", r.Range)
	p("  Duration: %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	p("\nFile Discovery:")
	p("  Expected files: %d", len(r.Existing)+len(r.Missing))
	p("  Found files: %d", len(r.Existing))
	p("  Loaded files: %d", r.FilesLoaded)
	p("  Missing files: %d", len(r.Missing))
	if len(r.Missing) > 0 {
		n := min(len(r.Missing), maxListedMissing)
		dates := make([]string, n)
		for i, m := range r.Missing[:n] {
			dates[i] = m.Date.Format("20060102")
		}
		p("  Missing file dates: %s", strings.Join(dates, ", "))
		if len(r.Missing) > maxListedMissing {
			p("    ... and %d more", len(r.Missing)-maxListedMissing)
		}
	}

	p("\nData Processing:")
	p("  Input rows: %s", thousands(r.InputRows))
	p("  Duplicates dropped: %s", thousands(r.Duplicates))
	p("  Total rows: %s", thousands(r.Summary.TotalRows))
	p("  Expected rows: %s", thousands(r.Summary.ExpectedRows))
	p("  Missing timestamps: %s", thousands(r.Summary.MissingRows))
	p("  Data coverage: %.1f%%", r.Summary.CoveragePercent)
	p("  Timestamp column: %s", r.Summary.TimestampField)
	if len(r.Inconsistencies) > 0 {
		p("  Metadata inconsistencies: %d", len(r.Inconsistencies))
	}

	if r.Enrich.Records > 0 {
		p("\nWet-Bulb Solver:")
		for _, st := range []meteo.SolverStatus{meteo.Converged, meteo.BoundsExceeded, meteo.MaxIterations, meteo.Undefined} {
			if n := r.Enrich.Solver[st]; n > 0 {
				p("  %s: %s", st, thousands(n))
			}
		}
	}

	p("\nOutputs:")
	for _, o := range r.Outputs {
		mark := "✓"
		if !o.Written {
			mark = "✗"
		}
		dest := strings.Join(o.Destinations, ", ")
		if dest == "" {
			dest = o.Sink
		}
		if o.Err != nil {
			p("  %s %s: %s (%v)", mark, strings.ToUpper(o.Sink), dest, o.Err)
			continue
		}
		p("  %s %s: %s", mark, strings.ToUpper(o.Sink), dest)
	}

	p("\n%s", rule)
}

var englishPrinter = message.NewPrinter(language.English)

// thousands formats n with comma separators.
func thousands(n int) string {
	return englishPrinter.Sprintf("%d", n)
}
