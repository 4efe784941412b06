package meteo

import (
	"math"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
)

const (
	// DefaultMaxIterations caps the wet-bulb fixed-point iteration.
	DefaultMaxIterations = 50
	// DefaultTolerance is the convergence threshold in °C.
	DefaultTolerance = 0.01

	damping     = 0.5
	boundMargin = 5.0
)

// SolverStatus records how a wet-bulb solve ended.
type SolverStatus int

const (
	// Undefined means an input was missing or the dewpoint could not be computed.
	Undefined SolverStatus = iota
	// Converged means successive estimates differed by less than the tolerance.
	Converged
	// BoundsExceeded means the estimate left [Td-5, T+5] and iteration stopped.
	BoundsExceeded
	// MaxIterations means the iteration cap was reached without converging.
	MaxIterations
)

func (s SolverStatus) String() string {
	switch s {
	case Converged:
		return "converged"
	case BoundsExceeded:
		return "bounds_exceeded"
	case MaxIterations:
		return "max_iterations"
	default:
		return "undefined"
	}
}

// SolverOptions tunes the iteration. Zero fields take the defaults.
type SolverOptions struct {
	MaxIterations int
	Tolerance     float64
}

func (o SolverOptions) withDefaults() SolverOptions {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	return o
}

// WetBulb is the outcome of one solve. TempC is missing only when Status is
// Undefined; every other status carries the best available estimate.
type WetBulb struct {
	TempC      domain.Value
	Iterations int
	Status     SolverStatus
}

// SolveWetBulb estimates the wet-bulb temperature for air temperature tC,
// vapor pressure eaKPa and air pressure pKPa.
//
// Starting from the dewpoint, each step applies Tw -= 0.5*(ewt(Tw) - ea).
// The solve returns as soon as a step moves less than the tolerance. If the
// new estimate falls outside [Td-5, T+5] iteration stops and that estimate is
// returned as is. Otherwise the last estimate is returned once the cap is hit.
func SolveWetBulb(tC, eaKPa, pKPa float64, opts SolverOptions) WetBulb {
	opts = opts.withDefaults()
	if math.IsNaN(tC) || math.IsNaN(eaKPa) || math.IsNaN(pKPa) {
		return WetBulb{Status: Undefined}
	}

	td, ok := Dewpoint(domain.Num(eaKPa)).Get()
	if !ok {
		return WetBulb{Status: Undefined}
	}

	tw := td
	for i := 1; i <= opts.MaxIterations; i++ {
		diff := WetBulbVaporPressure(tC, tw, pKPa) - eaKPa
		next := tw - damping*diff
		if math.Abs(next-tw) < opts.Tolerance {
			return WetBulb{TempC: domain.Num(next), Iterations: i, Status: Converged}
		}
		tw = next
		if tw < td-boundMargin || tw > tC+boundMargin {
			return WetBulb{TempC: domain.Num(tw), Iterations: i, Status: BoundsExceeded}
		}
	}
	return WetBulb{TempC: domain.Num(tw), Iterations: opts.MaxIterations, Status: MaxIterations}
}

// WetBulbTemperature is SolveWetBulb with default options over possibly
// missing inputs.
func WetBulbTemperature(t, ea, p domain.Value) domain.Value {
	return solve(t, ea, p, SolverOptions{}).TempC
}

func solve(t, ea, p domain.Value, opts SolverOptions) WetBulb {
	if domain.AnyMissing(t, ea, p) {
		return WetBulb{Status: Undefined}
	}
	return SolveWetBulb(t.Float, ea.Float, p.Float, opts)
}
