package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleSum gathers c on a private registry and sums its counter and gauge samples.
func sampleSum(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)

	var sum float64
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return sum
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "files", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "files=3")
	assert.NotContains(t, out, "\x1b[", "no color codes when not a terminal")
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	other := NewMetricsForTesting()

	m.RunsTotal.WithLabelValues("success").Inc()
	m.WetBulbSolves.WithLabelValues("converged").Add(3)

	assert.InDelta(t, 1, sampleSum(t, m.RunsTotal), 0)
	assert.InDelta(t, 3, sampleSum(t, m.WetBulbSolves), 0)
	assert.InDelta(t, 0, sampleSum(t, other.RunsTotal), 0)
}
