// Package metadata consolidates per-column units and logger statistics
// across the daily files of a merge.
package metadata

import (
	"maps"
	"slices"
	"strings"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/toa5"
)

// StatCalculated marks columns computed during enrichment.
const StatCalculated = "Calc"

var derivedUnits = map[string]string{
	domain.ColEsat:     "kPa",
	domain.ColEa:       "kPa",
	domain.ColDewpoint: "Deg C",
	domain.ColWetBulb:  "Deg C",
	domain.ColWBGT:     "Deg C",
}

// Row describes one column.
type Row struct {
	Column    string `json:"column_name"`
	Unit      string `json:"unit"`
	Statistic string `json:"statistic"`
}

// Table is a set of rows sorted by column name.
type Table []Row

// Consolidate picks, for every column seen in any header, the first non-empty
// unit and the first non-empty statistic in file order.
func Consolidate(headers []toa5.Header) Table {
	units := make(map[string]string)
	stats := make(map[string]string)
	for _, h := range headers {
		for _, col := range h.Columns {
			if _, ok := units[col]; !ok {
				units[col] = ""
				stats[col] = ""
			}
			if units[col] == "" {
				units[col] = strings.TrimSpace(h.Unit(col))
			}
			if stats[col] == "" {
				stats[col] = strings.TrimSpace(h.Stat(col))
			}
		}
	}

	t := make(Table, 0, len(units))
	for _, col := range slices.Sorted(maps.Keys(units)) {
		t = append(t, Row{Column: col, Unit: units[col], Statistic: stats[col]})
	}
	return t
}

// WithDerived returns a copy of t with rows for the enrichment columns added,
// still sorted by column name. Existing rows for those names are replaced.
func (t Table) WithDerived() Table {
	out := make(Table, 0, len(t)+len(derivedUnits))
	for _, r := range t {
		if _, derived := derivedUnits[r.Column]; !derived {
			out = append(out, r)
		}
	}
	for _, col := range domain.DerivedColumns {
		out = append(out, Row{Column: col, Unit: derivedUnits[col], Statistic: StatCalculated})
	}
	slices.SortFunc(out, func(a, b Row) int { return strings.Compare(a.Column, b.Column) })
	return out
}

// Lookup returns the row for column.
func (t Table) Lookup(column string) (Row, bool) {
	i, ok := slices.BinarySearchFunc(t, column, func(r Row, c string) int { return strings.Compare(r.Column, c) })
	if !ok {
		return Row{}, false
	}
	return t[i], true
}
