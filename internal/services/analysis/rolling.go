package analysis

import (
	"github.com/markcheno/go-talib"

	"chainscope/internal/domain/option_chain"
	"chainscope/pkg/errors"
)

// DefaultRollingPeriod is used when a rolling request leaves Period unset
const DefaultRollingPeriod = 5

// RollingRequest asks for a moving-window correlation between two metrics of one strike and side
type RollingRequest struct {
	Strike float64
	Side   option_chain.Side
	X      string
	Y      string
	Period int
}

// RollingSeries is a chart-ready rolling correlation. The first Period-1
// points have no full window and are flagged Missing.
type RollingSeries struct {
	Strike float64           `json:"strike"`
	Side   option_chain.Side `json:"side"`
	X      string            `json:"x"`
	Y      string            `json:"y"`
	Period int               `json:"period"`
	Points []Point           `json:"points"`
}

// RollingCorrelation computes a moving Pearson correlation over the rows of one
// strike where both metrics are numeric.
func RollingCorrelation(ds *option_chain.Dataset, req RollingRequest) (RollingSeries, error) {
	if req.Period == 0 {
		req.Period = DefaultRollingPeriod
	}
	if req.Period < 2 {
		return RollingSeries{}, errors.NewValidationError("period", "must be at least 2", req.Period)
	}
	if req.X == "" {
		req.X = option_chain.FieldPriceChange
	}
	if req.Y == "" {
		req.Y = option_chain.FieldOIChange
	}

	xCol, yCol := MetricColumn(req.Side, req.X), MetricColumn(req.Side, req.Y)
	for _, c := range []string{xCol, yCol} {
		if !ds.HasColumn(c) {
			return RollingSeries{}, errors.Wrapf(errors.ErrUnknownMetric, "%s", c)
		}
	}

	out := RollingSeries{
		Strike: req.Strike,
		Side:   req.Side,
		X:      baseMetric(req.X),
		Y:      baseMetric(req.Y),
		Period: req.Period,
		Points: []Point{},
	}

	var xs, ys []float64
	for _, i := range strikeRows(ds, req.Side, req.Strike) {
		row := ds.Rows[i]
		x, okX := row.Number(xCol)
		y, okY := row.Number(yCol)
		if !okX || !okY {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
		out.Points = append(out.Points, Point{
			Timestamp: row.Timestamp,
			Stamp:     row.Stamp,
			Label:     row.Label,
			Missing:   true,
		})
	}

	// talib.Correl reads a full first window, so shorter inputs stay all-missing.
	if len(xs) < req.Period {
		return out, nil
	}

	corr := talib.Correl(xs, ys, req.Period)
	for i := req.Period - 1; i < len(corr); i++ {
		out.Points[i].Value = round(clamp(corr[i], -1, 1), 4)
		out.Points[i].Missing = false
	}
	return out, nil
}
