package portfolio

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// ChartKind selects which snapshot fields are plotted.
type ChartKind string

const (
	ChartValuation ChartKind = "valuation"
	ChartReturns   ChartKind = "returns"
	ChartIncome    ChartKind = "income"
	ChartAssets    ChartKind = "assets"
)

// ParseChartKind accepts a chart name case-insensitively.
func ParseChartKind(s string) (ChartKind, error) {
	k := ChartKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case ChartValuation, ChartReturns, ChartIncome, ChartAssets:
		return k, nil
	}
	return "", fmt.Errorf("unknown chart kind %q (supported: valuation, returns, income, assets)", s)
}

type seriesSpec struct {
	name  string
	color string
	width float64
	dash  []float64
	value func(models.DailySnapshot) decimal.Decimal
}

var chartSeries = map[ChartKind][]seriesSpec{
	ChartValuation: {
		{name: "Valuation", color: "2563eb", width: 2.5, value: func(s models.DailySnapshot) decimal.Decimal { return s.Valuation }},
		{name: "Invested", color: "9ca3af", width: 1.5, dash: []float64{5.0, 3.0}, value: func(s models.DailySnapshot) decimal.Decimal { return s.Invested }},
	},
	ChartReturns: {
		{name: "Return", color: "16a34a", width: 2, value: func(s models.DailySnapshot) decimal.Decimal { return s.ReturnPct }},
	},
	ChartIncome: {
		{name: "Total Income", color: "2563eb", width: 2.5, value: func(s models.DailySnapshot) decimal.Decimal { return s.TotalIncome }},
		{name: "Capital Gain", color: "f59e0b", width: 1.5, value: func(s models.DailySnapshot) decimal.Decimal { return s.CapitalGain }},
		{name: "Interest", color: "9333ea", width: 1.5, value: func(s models.DailySnapshot) decimal.Decimal { return s.Interest }},
		{name: "Dividend", color: "16a34a", width: 1.5, value: func(s models.DailySnapshot) decimal.Decimal { return s.Dividend }},
	},
	ChartAssets: {
		{name: "Total", color: "2563eb", width: 2.5, value: func(s models.DailySnapshot) decimal.Decimal { return s.Cash.Add(s.Valuation) }},
		{name: "Cash", color: "9ca3af", width: 1.5, dash: []float64{5.0, 3.0}, value: func(s models.DailySnapshot) decimal.Decimal { return s.Cash }},
	},
}

var chartTitles = map[ChartKind]string{
	ChartValuation: "Valuation",
	ChartReturns:   "Return (%)",
	ChartIncome:    "Income",
	ChartAssets:    "Assets",
}

// RenderChart renders a PNG line chart of the timeseries. Money axes are
// labelled in the account currency.
func RenderChart(kind ChartKind, ts models.Timeseries, currency string) ([]byte, error) {
	specs, ok := chartSeries[kind]
	if !ok {
		return nil, fmt.Errorf("unknown chart kind %q", kind)
	}
	if len(ts.Snapshots) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(ts.Snapshots))
	}

	xValues := make([]time.Time, len(ts.Snapshots))
	for i, s := range ts.Snapshots {
		xValues[i] = s.Date
	}

	series := make([]chart.Series, 0, len(specs))
	lo, hi := 0.0, 0.0
	for n, line := range specs {
		yValues := make([]float64, len(ts.Snapshots))
		for i, s := range ts.Snapshots {
			y := line.value(s).InexactFloat64()
			yValues[i] = y
			if (n == 0 && i == 0) || y < lo {
				lo = y
			}
			if (n == 0 && i == 0) || y > hi {
				hi = y
			}
		}
		series = append(series, chart.TimeSeries{
			Name: line.name,
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex(line.color),
				StrokeWidth:     line.width,
				StrokeDashArray: line.dash,
			},
			XValues: xValues,
			YValues: yValues,
		})
	}

	yFormatter := func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return common.FormatMoney(decimal.NewFromFloat(f), currency)
		}
		return ""
	}
	if kind == ChartReturns {
		yFormatter = func(v interface{}) string {
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%.1f%%", f)
			}
			return ""
		}
	}

	graph := chart.Chart{
		Title:  chartTitles[kind],
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: yFormatter,
		},
		Series: series,
	}

	// go-chart refuses a zero-height range
	if lo == hi {
		graph.YAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	if len(series) > 1 {
		graph.Elements = []chart.Renderable{
			chart.LegendLeft(&graph),
		}
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
