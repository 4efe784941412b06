package domain

import (
	"slices"
	"time"
)

// TimestampLayout is the rendering used for timestamps in all text output.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one observation row. Timestamp is kept apart from Fields; Fields
// holds every other column keyed by header name.
type Record struct {
	Timestamp time.Time
	Fields    map[string]Value
}

// Get returns the value of field, missing when the field is absent.
func (r Record) Get(field string) Value {
	if r.Fields == nil {
		return Missing
	}
	return r.Fields[field]
}

// Clone returns a copy of r whose Fields map can be mutated independently.
func (r Record) Clone() Record {
	fields := make(map[string]Value, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{Timestamp: r.Timestamp, Fields: fields}
}

// AllMissing reports whether every listed field of r is missing.
func (r Record) AllMissing(fields []string) bool {
	for _, f := range fields {
		if r.Get(f).Valid {
			return false
		}
	}
	return true
}

// Series is an ordered sequence of records sharing a column schema. Columns
// lists header names in order and includes the timestamp column.
type Series struct {
	Columns []string
	Records []Record
}

// HasColumn reports whether name is part of the schema.
func (s Series) HasColumn(name string) bool {
	return slices.Contains(s.Columns, name)
}

// Len returns the number of records.
func (s Series) Len() int { return len(s.Records) }

// DataColumns returns the schema without the timestamp column.
func (s Series) DataColumns(timestampField string) []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c != timestampField {
			out = append(out, c)
		}
	}
	return out
}

// AddColumn appends name to the schema unless already present.
func (s *Series) AddColumn(name string) {
	if !s.HasColumn(name) {
		s.Columns = append(s.Columns, name)
	}
}
