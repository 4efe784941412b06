package meteo

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
)

// SourceColumns are the raw fields read by Enrich.
var SourceColumns = []string{domain.ColAirTemp, domain.ColRelHumidity, domain.ColAirPressure, domain.ColBlackGlobeTemp}

// EnrichOptions controls Enrich. Workers <= 0 uses GOMAXPROCS.
type EnrichOptions struct {
	Workers int
	Solver  SolverOptions
}

// EnrichStats reports what Enrich produced.
type EnrichStats struct {
	Records int
	// Computed holds the number of non-missing values per derived column.
	Computed map[string]int
	// Solver counts wet-bulb solves by outcome.
	Solver map[SolverStatus]int
	// AbsentColumns lists source columns missing from the schema entirely.
	AbsentColumns []string
}

type tally struct {
	computed [5]int
	solver   [4]int
}

// Enrich appends esat_kPa, ea_kPa, dewpoint_C, wet_bulb_C and WBGT_C to every
// record of s in place. Records are independent; they are split across
// workers, each solving its records sequentially.
func Enrich(s *domain.Series, opts EnrichOptions) EnrichStats {
	stats := EnrichStats{
		Records:  len(s.Records),
		Computed: make(map[string]int, len(domain.DerivedColumns)),
		Solver:   make(map[SolverStatus]int),
	}
	for _, c := range SourceColumns {
		if !s.HasColumn(c) {
			stats.AbsentColumns = append(stats.AbsentColumns, c)
		}
	}
	for _, c := range domain.DerivedColumns {
		s.AddColumn(c)
	}

	n := len(s.Records)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(1, min(workers, n))
	chunk := (n + workers - 1) / workers

	tallies := make([]tally, workers)
	var g errgroup.Group
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				enrichRecord(&s.Records[i], opts.Solver, &tallies[w])
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	for _, t := range tallies {
		for i, c := range domain.DerivedColumns {
			stats.Computed[c] += t.computed[i]
		}
		for st, count := range t.solver {
			if count > 0 {
				stats.Solver[SolverStatus(st)] += count
			}
		}
	}
	return stats
}

func enrichRecord(r *domain.Record, solver SolverOptions, t *tally) {
	if r.Fields == nil {
		r.Fields = make(map[string]domain.Value, len(domain.DerivedColumns))
	}

	temp := r.Get(domain.ColAirTemp)
	rh := r.Get(domain.ColRelHumidity)
	globe := r.Get(domain.ColBlackGlobeTemp)

	pressure := domain.Missing
	if p, ok := r.Get(domain.ColAirPressure).Get(); ok {
		pressure = domain.Num(p * MbarToKPa)
	}

	esat := domain.Missing
	if temp.Valid {
		esat = domain.Num(SaturatedVaporPressure(temp.Float))
	}

	ea := domain.Missing
	if !domain.AnyMissing(rh, esat) {
		ea = domain.Num(VaporPressure(rh.Float, esat.Float))
	}

	wb := solve(temp, ea, pressure, solver)
	derived := [5]domain.Value{
		esat,
		ea,
		Dewpoint(ea),
		wb.TempC,
		WBGT(globe, wb.TempC, temp),
	}

	for i, c := range domain.DerivedColumns {
		r.Fields[c] = derived[i]
		if derived[i].Valid {
			t.computed[i]++
		}
	}
	t.solver[wb.Status]++
}
