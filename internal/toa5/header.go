package toa5

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// HeaderLines is the number of lines preceding data rows.
const HeaderLines = 4

// ErrShortHeader is returned when a file ends before its header does.
var ErrShortHeader = errors.New("toa5: fewer than 4 header lines")

// Header is the parsed four line TOA5 preamble.
type Header struct {
	// Environment is the raw first line split into cells.
	Environment []string
	Columns     []string
	Units       map[string]string
	Stats       map[string]string
}

// Unit returns the unit declared for column, or "".
func (h Header) Unit(column string) string { return h.Units[column] }

// Stat returns the statistic declared for column, or "".
func (h Header) Stat(column string) string { return h.Stats[column] }

// ParseHeader reads the header from r. Unit and statistic lines shorter than
// the column line are padded with empty strings.
func ParseHeader(r io.Reader) (Header, error) {
	return parseHeader(newCSVReader(r))
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return cr
}

func parseHeader(cr *csv.Reader) (Header, error) {
	lines := make([][]string, 0, HeaderLines)
	for len(lines) < HeaderLines {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return Header{}, ErrShortHeader
		}
		if err != nil {
			return Header{}, fmt.Errorf("read header line %d: %w", len(lines)+1, err)
		}
		lines = append(lines, trimAll(rec))
	}

	h := Header{
		Environment: lines[0],
		Columns:     lines[1],
		Units:       make(map[string]string, len(lines[1])),
		Stats:       make(map[string]string, len(lines[1])),
	}
	for i, col := range h.Columns {
		h.Units[col] = cell(lines[2], i)
		h.Stats[col] = cell(lines[3], i)
	}
	return h, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, v := range rec {
		out[i] = strings.TrimSpace(strings.Trim(v, `"`))
	}
	return out
}
