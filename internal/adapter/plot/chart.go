package plot

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
)

// DefaultMaxPoints caps the rows drawn per chart before downsampling.
const DefaultMaxPoints = 200_000

// Temperature columns drawn together on one chart, in legend order.
var temperatureColumns = []string{"BGTemp_C_Avg", "AirTC_Avg"}

var temperatureColors = []string{"red", "blue"}

const (
	chartWidth  = "640px"
	chartHeight = "300px"
	// missingPoint leaves a gap in an ECharts line.
	missingPoint = "-"
)

// Columns returns the columns worth plotting: every data column except the
// record counter that holds at least one value.
func Columns(s domain.Series, timestampField string) []string {
	var out []string
	for _, c := range s.DataColumns(timestampField) {
		if strings.EqualFold(c, "RECORD") || strings.EqualFold(c, "TIMESTAMP") {
			continue
		}
		if allMissing(s, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func allMissing(s domain.Series, column string) bool {
	for _, r := range s.Records {
		if !r.Get(column).IsMissing() {
			return false
		}
	}
	return true
}

// Downsample keeps every stride-th record so that at most maxPoints remain.
// It returns the stride used; 1 means s was returned as is.
func Downsample(s domain.Series, maxPoints int) (domain.Series, int) {
	if maxPoints <= 0 || s.Len() <= maxPoints {
		return s, 1
	}
	stride := int(math.Ceil(float64(s.Len()) / float64(maxPoints)))
	out := domain.Series{Columns: s.Columns, Records: make([]domain.Record, 0, s.Len()/stride+1)}
	for i := 0; i < s.Len(); i += stride {
		out.Records = append(out.Records, s.Records[i])
	}
	return out, stride
}

// RenderSeries writes an HTML page with one line chart per plotted column.
// Temperature columns share a chart. The page is still written when no
// column has data, carrying a single notice chart.
func RenderSeries(out io.Writer, s domain.Series, timestampField string, maxPoints int) (plotted int, stride int, err error) {
	columns := Columns(s, timestampField)
	page := components.NewPage().SetPageTitle("Biobasis Meteorological Data Time Series")
	page.SetLayout(components.PageFlexLayout)

	if len(columns) == 0 {
		empty := charts.NewLine()
		empty.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
			charts.WithTitleOpts(opts.Title{
				Title:    "Biobasis Meteorological Data - No Data",
				Subtitle: "No numeric data columns available for plotting",
			}),
		)
		page.AddCharts(empty)
		return 0, 1, page.Render(out)
	}

	sampled, stride := Downsample(s, maxPoints)
	axis := make([]string, sampled.Len())
	for i, r := range sampled.Records {
		axis[i] = r.Timestamp.Format(domain.TimestampLayout)
	}

	var temps, others []string
	for _, c := range columns {
		if isTemperature(c) {
			temps = append(temps, c)
		} else {
			others = append(others, c)
		}
	}

	if len(temps) > 0 {
		line := newLine("Temperature (°C)", axis, true)
		for i, c := range temperatureColumns {
			if !slices.Contains(temps, c) {
				continue
			}
			line.AddSeries(c, lineData(sampled, c),
				charts.WithLineStyleOpts(opts.LineStyle{Width: 1, Color: temperatureColors[i]}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: temperatureColors[i]}),
			)
		}
		page.AddCharts(line)
	}
	for _, c := range others {
		line := newLine(c, axis, false)
		line.AddSeries(c, lineData(sampled, c), charts.WithLineStyleOpts(opts.LineStyle{Width: 1}))
		page.AddCharts(line)
	}

	return len(columns), stride, page.Render(out)
}

// RenderSummary writes an HTML page with a coverage bar chart for sum.
func RenderSummary(out io.Writer, sum grid.Summary) error {
	coverage := round1(sum.CoveragePercent)
	missing := round1(100 - sum.CoveragePercent)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title: "Data Coverage Summary",
			Subtitle: fmt.Sprintf("%s\nTotal rows: %d | Expected rows: %d | Missing timestamps: %d",
				sum.DateRange, sum.TotalRows, sum.ExpectedRows, sum.MissingRows),
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Percentage", Max: 100}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	bar.SetXAxis([]string{"Data Coverage", "Missing Data"}).
		AddSeries("coverage", []opts.BarData{
			{Value: coverage, ItemStyle: &opts.ItemStyle{Color: "green"}},
			{Value: missing, ItemStyle: &opts.ItemStyle{Color: "red"}},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage().SetPageTitle("Data Coverage Summary")
	page.AddCharts(bar)
	return page.Render(out)
}

func newLine(title string, axis []string, legend bool) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(legend), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (UTC)"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(axis)
	return line
}

func lineData(s domain.Series, column string) []opts.LineData {
	data := make([]opts.LineData, s.Len())
	for i, r := range s.Records {
		if f, ok := r.Get(column).Get(); ok {
			data[i] = opts.LineData{Value: f}
			continue
		}
		data[i] = opts.LineData{Value: missingPoint}
	}
	return data
}

func isTemperature(c string) bool { return slices.Contains(temperatureColumns, c) }

func round1(f float64) float64 { return math.Round(f*10) / 10 }
