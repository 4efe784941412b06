package meteo

import (
	"math"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
)

// Campbell Scientific saturation vapor pressure coefficients (hPa).
const (
	a0 = 6.107799961
	a1 = 4.436518521e-1
	a2 = 1.428945805e-2
	a3 = 2.650648471e-4
	a4 = 3.031240396e-6
	a5 = 2.034080948e-8
	a6 = 6.136820929e-11
)

// Inverse Tetens constants.
const (
	tetensE0 = 0.61078
	tetensA  = 17.558
	tetensB  = 241.88
)

// Psychrometer constants for an aspirated wet bulb.
const (
	psychroCoeff = 0.000660
	psychroTemp  = 0.00115
)

// WBGT weights for black globe, natural wet bulb and dry bulb.
const (
	wbgtGlobe   = 0.2
	wbgtWetBulb = 0.7
	wbgtDryBulb = 0.1
)

// MbarToKPa converts station pressure readings to kPa.
const MbarToKPa = 0.1

// SaturatedVaporPressure returns the saturation vapor pressure over water in
// kPa for air temperature tC in °C. It is defined for every real input.
func SaturatedVaporPressure(tC float64) float64 {
	hpa := a0 + a1*tC + a2*math.Pow(tC, 2) + a3*math.Pow(tC, 3) +
		a4*math.Pow(tC, 4) + a5*math.Pow(tC, 5) + a6*math.Pow(tC, 6)
	return hpa * 0.1
}

// VaporPressure returns the actual vapor pressure in kPa.
func VaporPressure(rhPercent, esat float64) float64 {
	return rhPercent * esat / 100
}

// Dewpoint inverts the Tetens equation. Missing or non-positive vapor
// pressure yields missing.
func Dewpoint(ea domain.Value) domain.Value {
	v, ok := ea.Get()
	if !ok || v <= 0 {
		return domain.Missing
	}
	lnTerm := math.Log(v / tetensE0)
	return domain.Num(tetensB * lnTerm / (tetensA - lnTerm))
}

// WetBulbVaporPressure is the psychrometric forward model: the vapor pressure
// implied by a wet-bulb reading twC at air temperature tC and pressure pKPa.
func WetBulbVaporPressure(tC, twC, pKPa float64) float64 {
	return SaturatedVaporPressure(twC) - psychroCoeff*(1+psychroTemp*twC)*(tC-twC)*pKPa
}

// WBGT returns the outdoor Wet-Bulb Globe Temperature. Any missing input
// yields missing.
func WBGT(blackGlobe, wetBulb, dryBulb domain.Value) domain.Value {
	if domain.AnyMissing(blackGlobe, wetBulb, dryBulb) {
		return domain.Missing
	}
	return domain.Num(wbgtGlobe*blackGlobe.Float + wbgtWetBulb*wetBulb.Float + wbgtDryBulb*dryBulb.Float)
}
