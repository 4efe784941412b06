// Command genmock writes synthetic Campbell TOA5 daily files for a date
// range, with optional missing slots, duplicated rows and missing days, so
// the merge can be exercised without field data.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data/mock \
//	  -start 20240601 -end 20240607 \
//	  -gap-prob 0.02 -dup-prob 0.01 -skip-days 20240603
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/biobasis-merge/internal/config"
	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/toa5"
)

// options controls what genmock produces.
type options struct {
	outDir   string
	station  string
	prefix   string
	r        grid.DateRange
	interval time.Duration
	gapProb  float64
	dupProb  float64
	nanProb  float64
	skipDays map[string]bool
	seed     uint64
}

var columns = []struct {
	name, unit, stat string
}{
	{"TIMESTAMP", "TS", ""},
	{"RECORD", "RN", ""},
	{domain.ColAirTemp, "Deg C", "Avg"},
	{domain.ColRelHumidity, "%", "Avg"},
	{domain.ColAirPressure, "mbar", "Avg"},
	{domain.ColBlackGlobeTemp, "Deg C", "Avg"},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("genmock", flag.ContinueOnError)
	outDir := fs.String("out-dir", "", "directory to write .dat files into")
	start := fs.String("start", "", "first date (YYYYMMDD or YYYY-MM-DD)")
	end := fs.String("end", "", "last date (YYYYMMDD or YYYY-MM-DD)")
	station := fs.String("station", "MM1", "station id used in file names")
	prefix := fs.String("prefix", "Biobasis", "file name prefix")
	interval := fs.Duration("interval", grid.DefaultInterval, "logging interval")
	gapProb := fs.Float64("gap-prob", 0, "probability that a slot has no row")
	dupProb := fs.Float64("dup-prob", 0, "probability that a row is written twice")
	nanProb := fs.Float64("nan-prob", 0, "probability that a value is NAN")
	skip := fs.String("skip-days", "", "comma separated dates to leave without a file")
	seed := fs.Uint64("seed", 1, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *outDir == "" || *start == "" || *end == "" {
		fs.Usage()
		return fmt.Errorf("missing required flags: -out-dir, -start, -end")
	}
	if *interval <= 0 || (24*time.Hour)%*interval != 0 {
		return fmt.Errorf("interval %s must divide 24h evenly", *interval)
	}

	s, err := config.ParseDate(*start)
	if err != nil {
		return err
	}
	e, err := config.ParseDate(*end)
	if err != nil {
		return err
	}
	if e.Before(s) {
		return fmt.Errorf("end %s is before start %s", *end, *start)
	}

	opts := options{
		outDir:   *outDir,
		station:  *station,
		prefix:   *prefix,
		r:        grid.NewDateRange(s, e),
		interval: *interval,
		gapProb:  *gapProb,
		dupProb:  *dupProb,
		nanProb:  *nanProb,
		skipDays: map[string]bool{},
		seed:     *seed,
	}
	for _, d := range strings.Split(*skip, ",") {
		if d = strings.TrimSpace(d); d == "" {
			continue
		}
		t, err := config.ParseDate(d)
		if err != nil {
			return err
		}
		opts.skipDays[t.Format(config.DateLayoutCompact)] = true
	}

	written, err := generate(opts)
	if err != nil {
		return err
	}
	log.Printf("wrote %d files to %s", len(written), opts.outDir)
	return nil
}

// generate writes one file per date not listed in skipDays and returns
// their paths.
func generate(opts options) ([]string, error) {
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))

	var written []string
	record := 0
	for _, date := range opts.r.Dates() {
		if opts.skipDays[date.Format(config.DateLayoutCompact)] {
			continue
		}
		path := filepath.Join(opts.outDir, toa5.FileName(opts.prefix, opts.station, date))
		if err := writeDay(path, date, opts, rng, &record); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func writeDay(path string, date time.Time, opts options, rng *rand.Rand, record *int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	names := make([]string, len(columns))
	units := make([]string, len(columns))
	stats := make([]string, len(columns))
	for i, c := range columns {
		names[i], units[i], stats[i] = quote(c.name), quote(c.unit), quote(c.stat)
	}
	fmt.Fprintf(w, "%q,%q,%q,%q,%q,%q,%q,%q\n", "TOA5", opts.station, "CR1000X", "00000", "CR1000X.Std.05", "CPU:genmock.CR1X", "0", "Table30")
	fmt.Fprintln(w, strings.Join(names, ","))
	fmt.Fprintln(w, strings.Join(units, ","))
	fmt.Fprintln(w, strings.Join(stats, ","))

	for _, ts := range grid.BuildCanonicalGrid(grid.NewDateRange(date, date), opts.interval) {
		if rng.Float64() < opts.gapProb {
			continue
		}
		line := formatRow(ts, *record, sample(ts, rng), opts.nanProb, rng)
		*record++
		fmt.Fprintln(w, line)
		if rng.Float64() < opts.dupProb {
			fmt.Fprintln(w, line)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// sample returns air temperature, relative humidity, pressure and black
// globe temperature following a simple diurnal cycle.
func sample(ts time.Time, rng *rand.Rand) [4]float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	temp := 18 + 6*math.Sin(2*math.Pi*(hour-9)/24) + rng.NormFloat64()*0.3
	rh := math.Max(10, math.Min(100, 70-2.5*(temp-18)+rng.NormFloat64()*2))
	pressure := 1010 + rng.NormFloat64()*1.5
	sun := math.Max(0, math.Sin(math.Pi*(hour-6)/12))
	globe := temp + 8*sun + rng.NormFloat64()*0.5
	return [4]float64{temp, rh, pressure, globe}
}

func formatRow(ts time.Time, record int, v [4]float64, nanProb float64, rng *rand.Rand) string {
	parts := []string{quote(ts.Format(domain.TimestampLayout)), fmt.Sprint(record)}
	for _, x := range v {
		if rng.Float64() < nanProb {
			parts = append(parts, quote("NAN"))
			continue
		}
		parts = append(parts, fmt.Sprintf("%.2f", x))
	}
	return strings.Join(parts, ",")
}

func quote(s string) string { return `"` + s + `"` }
