package metadata

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/couchcryptid/biobasis-merge/internal/toa5"
)

// Kind classifies an Inconsistency.
type Kind string

const (
	KindUnit           Kind = "unit"
	KindStatistic      Kind = "statistic"
	KindMissingColumns Kind = "missing_columns"
	KindExtraColumns   Kind = "extra_columns"
)

// Inconsistency is a header difference between daily files. None of them
// stop a merge; they are reported so an operator can look at the logger
// program history.
type Inconsistency struct {
	Kind   Kind
	Column string
	// Values holds the distinct conflicting values, or the affected column
	// names for the column kinds.
	Values []string
	// File is the index of the header that differs from the first one. It is
	// only set for the column kinds.
	File int
}

func (i Inconsistency) String() string {
	switch i.Kind {
	case KindMissingColumns, KindExtraColumns:
		return fmt.Sprintf("header %d has %s: %s", i.File, strings.ReplaceAll(string(i.Kind), "_", " "), strings.Join(i.Values, ", "))
	default:
		return fmt.Sprintf("column %q has inconsistent %ss across files: %s", i.Column, i.Kind, strings.Join(i.Values, ", "))
	}
}

// Validate compares headers against each other. Column sets are compared to
// the first header; units and statistics are compared over all non-empty
// values. Results are ordered by column name within each kind.
func Validate(headers []toa5.Header) []Inconsistency {
	if len(headers) <= 1 {
		return nil
	}

	var out []Inconsistency
	ref := headers[0].Columns
	for i, h := range headers[1:] {
		if slices.Equal(h.Columns, ref) {
			continue
		}
		if missing := difference(ref, h.Columns); len(missing) > 0 {
			out = append(out, Inconsistency{Kind: KindMissingColumns, Values: missing, File: i + 1})
		}
		if extra := difference(h.Columns, ref); len(extra) > 0 {
			out = append(out, Inconsistency{Kind: KindExtraColumns, Values: extra, File: i + 1})
		}
	}

	out = append(out, conflicts(headers, KindUnit, toa5.Header.Unit)...)
	out = append(out, conflicts(headers, KindStatistic, toa5.Header.Stat)...)
	return out
}

func conflicts(headers []toa5.Header, kind Kind, get func(toa5.Header, string) string) []Inconsistency {
	seen := make(map[string][]string)
	for _, h := range headers {
		for _, col := range h.Columns {
			v := strings.TrimSpace(get(h, col))
			if v == "" || slices.Contains(seen[col], v) {
				continue
			}
			seen[col] = append(seen[col], v)
		}
	}

	var out []Inconsistency
	for _, col := range slices.Sorted(maps.Keys(seen)) {
		if vals := seen[col]; len(vals) > 1 {
			out = append(out, Inconsistency{Kind: kind, Column: col, Values: vals})
		}
	}
	return out
}

// difference returns names in a that are not in b, sorted.
func difference(a, b []string) []string {
	var out []string
	for _, c := range a {
		if !slices.Contains(b, c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}
