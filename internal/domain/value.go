package domain

import (
	"math"
	"strconv"
)

// Value is a numeric observation that may be missing. The zero Value is missing.
type Value struct {
	Float float64
	Valid bool
}

// Missing is the absent Value.
var Missing = Value{}

// Num wraps f as a present Value. NaN and ±Inf are treated as missing.
func Num(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing
	}
	return Value{Float: f, Valid: true}
}

// IsMissing reports whether v carries no number.
func (v Value) IsMissing() bool { return !v.Valid }

// Get returns the number and whether it is present.
func (v Value) Get() (float64, bool) { return v.Float, v.Valid }

// String renders v for text output; missing becomes "NaN".
func (v Value) String() string {
	if !v.Valid {
		return "NaN"
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// AnyMissing reports whether at least one of vs is missing.
func AnyMissing(vs ...Value) bool {
	for _, v := range vs {
		if !v.Valid {
			return true
		}
	}
	return false
}
