package analysis

import (
	"sort"
	"strings"
	"time"

	"chainscope/internal/domain/option_chain"
	"chainscope/pkg/errors"
)

// ChartKind is a rendering hint passed through to the presentation layer
type ChartKind string

const (
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
)

// ParseChartKind defaults to a line chart
func ParseChartKind(raw string) ChartKind {
	if strings.EqualFold(strings.TrimSpace(raw), string(ChartBar)) {
		return ChartBar
	}
	return ChartLine
}

// SeriesRequest selects one metric of one strike. The caller passes the full
// selection on every call; nothing is remembered between calls.
type SeriesRequest struct {
	Strike float64
	Side   option_chain.SideSelector
	Metric string
	Chart  ChartKind
}

// Point is one observation of a series.
// Non-numeric or absent values are reported as 0 with Missing set.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Stamp     string    `json:"stamp"`
	Label     string    `json:"label"`
	Value     float64   `json:"value"`
	Missing   bool      `json:"missing,omitempty"`
}

// Series is the time-ordered metric for one side. Sides are never merged.
type Series struct {
	Side   option_chain.Side `json:"side"`
	Column string            `json:"column"`
	Title  string            `json:"title"`
	Points []Point           `json:"points"`
}

// SeriesResult holds one series per requested side that carries the metric
type SeriesResult struct {
	Strike float64   `json:"strike"`
	Metric string    `json:"metric"`
	Label  string    `json:"label"`
	Chart  ChartKind `json:"chart"`
	Series []Series  `json:"series"`
}

// Empty reports whether no series has any point
func (r SeriesResult) Empty() bool {
	for _, s := range r.Series {
		if len(s.Points) > 0 {
			return false
		}
	}
	return true
}

var metricLabels = map[string]string{
	option_chain.FieldLastPrice:            "Price",
	option_chain.FieldTotalTradedVolume:    "Volume",
	option_chain.FieldChangeInOpenInterest: "Open Interest Change",
	option_chain.FieldOpenInterest:         "Open Interest",
	option_chain.FieldImpliedVolatility:    "Implied Volatility",
	option_chain.FieldVolChange:            "Volume Change",
	option_chain.FieldOIChange:             "OI Change",
	option_chain.FieldPriceChange:          "Price Change",
	option_chain.FieldIVChange:             "IV Change",
	option_chain.FieldPctReturn:            "% Return",
	option_chain.ColumnOIImbalance:         "OI Imbalance",
	option_chain.ColumnPCR:                 "Put/Call Ratio",
}

// MetricLabel returns the display name of a metric, or the metric itself
func MetricLabel(metric string) string {
	if label, ok := metricLabels[baseMetric(metric)]; ok {
		return label
	}
	return metric
}

// baseMetric strips a CE_/PE_ prefix
func baseMetric(metric string) string {
	for _, side := range option_chain.Sides {
		if strings.HasPrefix(metric, side.Prefix()) {
			return strings.TrimPrefix(metric, side.Prefix())
		}
	}
	return metric
}

// MetricColumn resolves a metric name to the dataset column for a side.
// Cross-side indicators keep their name for every side.
func MetricColumn(side option_chain.Side, metric string) string {
	switch metric {
	case option_chain.ColumnOIImbalance, option_chain.ColumnPCR:
		return metric
	}
	return side.Column(baseMetric(metric))
}

// ListStrikes returns the sorted distinct strikes of a side, or of both sides
func ListStrikes(ds *option_chain.Dataset, sel option_chain.SideSelector) []float64 {
	seen := make(map[float64]struct{})
	for _, side := range sel.Sides() {
		for _, s := range ds.Strikes(side) {
			seen[s] = struct{}{}
		}
	}
	strikes := make([]float64, 0, len(seen))
	for s := range seen {
		strikes = append(strikes, s)
	}
	sort.Float64s(strikes)
	return strikes
}

// QuerySeries returns the time-ordered metric series of one strike per side.
// A strike with no rows yields empty series, not an error. ErrUnknownMetric is
// returned only when no requested side carries the metric column at all.
func QuerySeries(ds *option_chain.Dataset, req SeriesRequest) (SeriesResult, error) {
	metric := strings.TrimSpace(req.Metric)
	if metric == "" {
		return SeriesResult{}, errors.NewValidationError("metric", "is required", req.Metric)
	}
	chart := req.Chart
	if chart == "" {
		chart = ChartLine
	}

	result := SeriesResult{
		Strike: req.Strike,
		Metric: baseMetric(metric),
		Label:  MetricLabel(metric),
		Chart:  chart,
	}

	for _, side := range req.Side.Sides() {
		column := MetricColumn(side, metric)
		if !ds.HasColumn(column) {
			continue
		}
		result.Series = append(result.Series, Series{
			Side:   side,
			Column: column,
			Title:  string(side) + " " + result.Label,
			Points: strikePoints(ds, side, req.Strike, column),
		})
	}

	if len(result.Series) == 0 {
		return result, errors.Wrapf(errors.ErrUnknownMetric, "%s", metric)
	}
	return result, nil
}

// strikeRows returns indexes of rows whose side strike equals strike, in time order.
// Rows with a non-numeric strike are never matched.
func strikeRows(ds *option_chain.Dataset, side option_chain.Side, strike float64) []int {
	column := side.Column(option_chain.FieldStrikePrice)
	var idx []int
	for i, row := range ds.Rows {
		if v, ok := row.Number(column); ok && v == strike {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ds.Rows[idx[a]].Timestamp.Before(ds.Rows[idx[b]].Timestamp)
	})
	return idx
}

func strikePoints(ds *option_chain.Dataset, side option_chain.Side, strike float64, column string) []Point {
	idx := strikeRows(ds, side, strike)
	points := make([]Point, 0, len(idx))
	for _, i := range idx {
		row := ds.Rows[i]
		v, ok := row.Number(column)
		points = append(points, Point{
			Timestamp: row.Timestamp,
			Stamp:     row.Stamp,
			Label:     row.Label,
			Value:     v,
			Missing:   !ok,
		})
	}
	return points
}
