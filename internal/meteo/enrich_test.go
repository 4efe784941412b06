package meteo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
)

func stationSeries(rows ...map[string]domain.Value) *domain.Series {
	s := &domain.Series{Columns: []string{
		"TIMESTAMP", domain.ColAirTemp, domain.ColRelHumidity, domain.ColAirPressure, domain.ColBlackGlobeTemp,
	}}
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, f := range rows {
		s.Records = append(s.Records, domain.Record{Timestamp: base.Add(time.Duration(i) * 30 * time.Minute), Fields: f})
	}
	return s
}

func fullRow() map[string]domain.Value {
	return map[string]domain.Value{
		domain.ColAirTemp:        domain.Num(25),
		domain.ColRelHumidity:    domain.Num(50),
		domain.ColAirPressure:    domain.Num(1013),
		domain.ColBlackGlobeTemp: domain.Num(30),
	}
}

func TestEnrich_AppendsDerivedColumns(t *testing.T) {
	s := stationSeries(fullRow())

	stats := Enrich(s, EnrichOptions{})

	assert.Equal(t, []string{
		"TIMESTAMP", domain.ColAirTemp, domain.ColRelHumidity, domain.ColAirPressure, domain.ColBlackGlobeTemp,
		domain.ColEsat, domain.ColEa, domain.ColDewpoint, domain.ColWetBulb, domain.ColWBGT,
	}, s.Columns)
	assert.Equal(t, 1, stats.Records)
	assert.Empty(t, stats.AbsentColumns)

	r := s.Records[0]
	assert.InDelta(t, 3.166934725092432, r.Get(domain.ColEsat).Float, 1e-9)
	assert.InDelta(t, 1.583467362546216, r.Get(domain.ColEa).Float, 1e-9)
	assert.InDelta(t, 13.876446722923172, r.Get(domain.ColDewpoint).Float, 1e-6)
	assert.InDelta(t, 17.905585658987988, r.Get(domain.ColWetBulb).Float, 1e-6)

	wantWBGT := 0.2*30 + 0.7*r.Get(domain.ColWetBulb).Float + 0.1*25
	assert.InDelta(t, wantWBGT, r.Get(domain.ColWBGT).Float, 1e-9)

	for _, c := range domain.DerivedColumns {
		assert.Equal(t, 1, stats.Computed[c], c)
	}
	assert.Equal(t, map[SolverStatus]int{Converged: 1}, stats.Solver)
}

func TestEnrich_MissingPropagation(t *testing.T) {
	noHumidity := fullRow()
	noHumidity[domain.ColRelHumidity] = domain.Missing

	noPressure := fullRow()
	delete(noPressure, domain.ColAirPressure)

	noGlobe := fullRow()
	noGlobe[domain.ColBlackGlobeTemp] = domain.Missing

	s := stationSeries(noHumidity, noPressure, noGlobe)
	stats := Enrich(s, EnrichOptions{Workers: 2})

	t.Run("humidity missing keeps esat only", func(t *testing.T) {
		r := s.Records[0]
		assert.False(t, r.Get(domain.ColEsat).IsMissing())
		assert.True(t, r.Get(domain.ColEa).IsMissing())
		assert.True(t, r.Get(domain.ColDewpoint).IsMissing())
		assert.True(t, r.Get(domain.ColWetBulb).IsMissing())
		assert.True(t, r.Get(domain.ColWBGT).IsMissing())
	})

	t.Run("pressure missing stops at dewpoint", func(t *testing.T) {
		r := s.Records[1]
		assert.False(t, r.Get(domain.ColDewpoint).IsMissing())
		assert.True(t, r.Get(domain.ColWetBulb).IsMissing())
		assert.True(t, r.Get(domain.ColWBGT).IsMissing())
	})

	t.Run("globe missing only affects wbgt", func(t *testing.T) {
		r := s.Records[2]
		assert.False(t, r.Get(domain.ColWetBulb).IsMissing())
		assert.True(t, r.Get(domain.ColWBGT).IsMissing())
	})

	assert.Equal(t, 3, stats.Computed[domain.ColEsat])
	assert.Equal(t, 2, stats.Computed[domain.ColEa])
	assert.Equal(t, 1, stats.Computed[domain.ColWetBulb])
	assert.Equal(t, 0, stats.Computed[domain.ColWBGT])
	assert.Equal(t, map[SolverStatus]int{Undefined: 2, Converged: 1}, stats.Solver)
}

func TestEnrich_EmptyGridSlot(t *testing.T) {
	s := stationSeries(nil)

	Enrich(s, EnrichOptions{})

	r := s.Records[0]
	require.NotNil(t, r.Fields)
	for _, c := range domain.DerivedColumns {
		v, ok := r.Fields[c]
		assert.True(t, ok, c)
		assert.True(t, v.IsMissing(), c)
	}
}

func TestEnrich_AbsentSourceColumns(t *testing.T) {
	s := &domain.Series{Columns: []string{"TIMESTAMP", domain.ColAirTemp}}
	s.Records = []domain.Record{{
		Timestamp: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Fields:    map[string]domain.Value{domain.ColAirTemp: domain.Num(20)},
	}}

	stats := Enrich(s, EnrichOptions{})

	assert.Equal(t, []string{domain.ColRelHumidity, domain.ColAirPressure, domain.ColBlackGlobeTemp}, stats.AbsentColumns)
	assert.InDelta(t, 2.3371155618890564, s.Records[0].Get(domain.ColEsat).Float, 1e-9)
	assert.True(t, s.Records[0].Get(domain.ColWetBulb).IsMissing())
}

func TestEnrich_WorkerCountDoesNotChangeResults(t *testing.T) {
	build := func() *domain.Series {
		var rows []map[string]domain.Value
		for i := range 97 {
			rows = append(rows, map[string]domain.Value{
				domain.ColAirTemp:        domain.Num(5 + float64(i%30)),
				domain.ColRelHumidity:    domain.Num(20 + float64(i%70)),
				domain.ColAirPressure:    domain.Num(950 + float64(i%60)),
				domain.ColBlackGlobeTemp: domain.Num(10 + float64(i%35)),
			})
		}
		return stationSeries(rows...)
	}

	serial := build()
	parallel := build()
	serialStats := Enrich(serial, EnrichOptions{Workers: 1})
	parallelStats := Enrich(parallel, EnrichOptions{Workers: 8})

	assert.Equal(t, serialStats, parallelStats)
	assert.Equal(t, serial.Records, parallel.Records)
}

func TestEnrich_EmptySeries(t *testing.T) {
	s := &domain.Series{Columns: []string{"TIMESTAMP"}}

	stats := Enrich(s, EnrichOptions{})

	assert.Zero(t, stats.Records)
	assert.Len(t, s.Columns, 1+len(domain.DerivedColumns))
}
