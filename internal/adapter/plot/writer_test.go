package plot

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/biobasis-merge/internal/adapter/outfile"
	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

var (
	t0        = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	testRange = grid.NewDateRange(t0, t0.AddDate(0, 0, 1))
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testSeries(n int) domain.Series {
	s := domain.Series{Columns: []string{"TIMESTAMP", "RECORD", "AirTC_Avg", "BGTemp_C_Avg", "RH_Avg", "WS_ms_Avg"}}
	for i := range n {
		s.Records = append(s.Records, domain.Record{
			Timestamp: t0.Add(time.Duration(i) * 30 * time.Minute),
			Fields: map[string]domain.Value{
				"RECORD":       domain.Num(float64(i)),
				"AirTC_Avg":    domain.Num(14 + float64(i%10)/10),
				"BGTemp_C_Avg": domain.Num(18.5),
				"RH_Avg":       domain.Num(81),
			},
		})
	}
	return s
}

func testRun() *pipeline.Run {
	s := testSeries(96)
	return &pipeline.Run{
		Range:          testRange,
		TimestampField: "TIMESTAMP",
		Series:         s,
		Summary:        grid.Summarize(s, "TIMESTAMP", testRange, 30*time.Minute),
	}
}

func TestColumns(t *testing.T) {
	s := testSeries(3)
	assert.Equal(t, []string{"AirTC_Avg", "BGTemp_C_Avg", "RH_Avg"}, Columns(s, "TIMESTAMP"),
		"record counter and all-missing columns are skipped")
	assert.Empty(t, Columns(domain.Series{Columns: []string{"TIMESTAMP"}}, "TIMESTAMP"))
}

func TestDownsample(t *testing.T) {
	s := testSeries(10)

	same, stride := Downsample(s, 10)
	assert.Equal(t, 1, stride)
	assert.Equal(t, 10, same.Len())

	out, stride := Downsample(s, 4)
	assert.Equal(t, 3, stride)
	require.Equal(t, 4, out.Len())
	assert.Equal(t, s.Records[3].Timestamp, out.Records[1].Timestamp)
	assert.Equal(t, s.Records[9].Timestamp, out.Records[3].Timestamp)
	assert.Equal(t, 10, s.Len(), "input is not modified")
}

func TestRenderSeries(t *testing.T) {
	var buf bytes.Buffer
	plotted, stride, err := RenderSeries(&buf, testSeries(6), "TIMESTAMP", 3)
	require.NoError(t, err)

	assert.Equal(t, 3, plotted)
	assert.Equal(t, 2, stride)
	html := buf.String()
	assert.Contains(t, html, "echarts.min.js")
	assert.Contains(t, html, "Temperature (°C)")
	assert.Contains(t, html, "RH_Avg")
	assert.NotContains(t, html, "WS_ms_Avg")
	assert.Contains(t, html, "2024-06-01 01:00:00")
	assert.NotContains(t, html, "2024-06-01 00:30:00", "downsampled rows are not drawn")
}

func TestRenderSeries_NoNumericColumns(t *testing.T) {
	var buf bytes.Buffer
	s := domain.Series{Columns: []string{"TIMESTAMP", "RECORD"}}

	plotted, _, err := RenderSeries(&buf, s, "TIMESTAMP", DefaultMaxPoints)
	require.NoError(t, err)

	assert.Zero(t, plotted)
	assert.Contains(t, buf.String(), "No numeric data columns available for plotting")
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	sum := grid.Summary{TotalRows: 48, ExpectedRows: 48, MissingRows: 45, CoveragePercent: 6.25, DateRange: "2024-01-01 to 2024-01-01"}

	require.NoError(t, RenderSummary(&buf, sum))

	html := buf.String()
	assert.Contains(t, html, "Data Coverage Summary")
	assert.Contains(t, html, "Missing timestamps: 45")
	assert.Contains(t, html, "6.3")
	assert.Contains(t, html, "93.8")
}

func TestWriter_Paths(t *testing.T) {
	w := NewWriter("/out", "Biobasis", "MM1", false, 0, discard())
	assert.Equal(t, Paths{
		Series:  filepath.Join("/out", "Biobasis_MM1_merged_20240601-20240602_plots.html"),
		Summary: filepath.Join("/out", "Biobasis_MM1_merged_20240601-20240602_plots_summary.html"),
	}, w.Paths(testRange))
	assert.Equal(t, "plot", w.Name())
	assert.Equal(t, DefaultMaxPoints, w.maxPoints)
}

func TestWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir, "Biobasis", "MM1", false, 0, discard())

	require.NoError(t, w.Write(context.Background(), testRun()))

	paths := w.Paths(testRange)
	for _, p := range []string{paths.Series, paths.Summary} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), p)
		assert.NoError(t, Validate(p))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}

func TestWriter_Prepare(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "Biobasis", "MM1", false, 0, discard())
	require.NoError(t, w.Prepare(context.Background(), testRange))

	require.NoError(t, os.WriteFile(w.Paths(testRange).Series, []byte("x"), 0o600))

	err := w.Prepare(context.Background(), testRange)
	require.ErrorIs(t, err, outfile.ErrOutputExists)
	assert.Contains(t, err.Error(), "_plots.html")
	assert.Contains(t, err.Error(), "--overwrite")

	overwriting := NewWriter(dir, "Biobasis", "MM1", true, 0, discard())
	require.NoError(t, overwriting.Prepare(context.Background(), testRange))
	require.NoError(t, overwriting.Write(context.Background(), testRun()))
	assert.NoError(t, Validate(w.Paths(testRange).Series))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "absent.html")},
		{"empty", write("empty.html", "")},
		{"no chart library", write("plain.html", "<html><body>"+strings.Repeat("x", 2000)+"</body></html>")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.path), ErrInvalidOutput)
		})
	}

	assert.NoError(t, Validate(write("ok.html", `<html><head><script src="echarts.min.js"></script></head></html>`)))
}
