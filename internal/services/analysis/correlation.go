package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"chainscope/internal/domain/option_chain"
)

// Relation strength thresholds on |rho|. The combined-side view only
// highlights pairs at or above HighlightThreshold.
const (
	StrongThreshold    = 0.7
	ModerateThreshold  = 0.4
	HighlightThreshold = 0.5
)

// CorrelationRequest selects one strike, side(s) and an inclusive time window.
// A zero Start or End leaves that end of the window open.
type CorrelationRequest struct {
	Strike float64
	Side   option_chain.SideSelector
	Start  time.Time
	End    time.Time
}

// Coefficient is a correlation value that may be undefined
// (fewer than two paired points or zero variance)
type Coefficient struct {
	Value float64
	Valid bool
}

// MarshalJSON encodes undefined coefficients as null
func (c Coefficient) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// Relation is the classified correlation of one metric pair
type Relation struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Coefficient float64 `json:"coefficient"`
	Direction   string  `json:"direction"` // positive|negative
	Strength    string  `json:"strength"`  // strong|moderate|weak
	Text        string  `json:"text"`
}

// CorrelationResult is the pairwise matrix over side-qualified delta metrics
type CorrelationResult struct {
	Strike       float64                   `json:"strike"`
	Side         option_chain.SideSelector `json:"side"`
	Rows         int                       `json:"rows"`
	Columns      []string                  `json:"columns,omitempty"`
	Matrix       [][]Coefficient           `json:"matrix,omitempty"`
	Relations    []Relation                `json:"relations,omitempty"`
	Highlights   []Relation                `json:"highlights,omitempty"`
	Insufficient bool                      `json:"insufficient"`
	Reason       string                    `json:"reason,omitempty"`
}

// At returns the coefficient between two named columns
func (r *CorrelationResult) At(a, b string) (Coefficient, bool) {
	i, j := indexOf(r.Columns, a), indexOf(r.Columns, b)
	if i < 0 || j < 0 {
		return Coefficient{}, false
	}
	return r.Matrix[i][j], true
}

// Classify returns the direction and strength of a correlation coefficient
func Classify(rho float64) (direction, strength string) {
	direction = "negative"
	if rho > 0 {
		direction = "positive"
	}

	abs := math.Abs(rho)
	switch {
	case abs >= StrongThreshold:
		strength = "strong"
	case abs >= ModerateThreshold:
		strength = "moderate"
	default:
		strength = "weak"
	}
	return direction, strength
}

// correlationBlock is one side's complete rows over its available delta columns
type correlationBlock struct {
	columns []string
	rows    []int             // dataset row indexes in time order
	values  map[int][]float64 // dataset row index -> values aligned with columns
}

// Correlate computes the Pearson matrix among the delta metrics of one strike
// inside a time window. Rows are complete within a side; pairs spanning two
// sides use the rows both sides kept. Values are rounded to 2 decimals.
func Correlate(ds *option_chain.Dataset, req CorrelationRequest) *CorrelationResult {
	result := &CorrelationResult{Strike: req.Strike, Side: req.Side}

	type column struct {
		name  string
		block *correlationBlock
		pos   int
	}
	var columns []column
	used := make(map[int]struct{})

	for _, side := range req.Side.Sides() {
		block := buildBlock(ds, side, req)
		if block == nil || len(block.values) < 2 {
			continue
		}
		for pos, field := range block.columns {
			columns = append(columns, column{name: field + "_" + string(side), block: block, pos: pos})
		}
		for i := range block.values {
			used[i] = struct{}{}
		}
	}

	if len(columns) < 2 {
		result.Insufficient = true
		result.Reason = fmt.Sprintf("need at least 2 metric columns with 2+ complete rows, found %d", len(columns))
		return result
	}

	n := len(columns)
	result.Rows = len(used)
	result.Columns = make([]string, n)
	result.Matrix = make([][]Coefficient, n)
	for i := range columns {
		result.Columns[i] = columns[i].name
		result.Matrix[i] = make([]Coefficient, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := columns[i], columns[j]
			var x, y []float64
			for _, row := range a.block.rows {
				va := a.block.values[row]
				vb, ok := b.block.values[row]
				if !ok {
					continue
				}
				x = append(x, va[a.pos])
				y = append(y, vb[b.pos])
			}

			coef := Coefficient{}
			if r, ok := pearson(x, y); ok {
				coef = Coefficient{Value: round(r, 2), Valid: true}
			}
			result.Matrix[i][j] = coef
			result.Matrix[j][i] = coef
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			coef := result.Matrix[i][j]
			if !coef.Valid {
				continue
			}
			rel := newRelation(result.Columns[i], result.Columns[j], coef.Value)
			result.Relations = append(result.Relations, rel)
			if req.Side == option_chain.SelectBoth && math.Abs(coef.Value) >= HighlightThreshold {
				result.Highlights = append(result.Highlights, rel)
			}
		}
	}
	return result
}

func buildBlock(ds *option_chain.Dataset, side option_chain.Side, req CorrelationRequest) *correlationBlock {
	block := &correlationBlock{values: make(map[int][]float64)}
	for _, field := range option_chain.DeltaFields {
		if ds.HasColumn(side.Column(field)) {
			block.columns = append(block.columns, field)
		}
	}
	if len(block.columns) == 0 {
		return nil
	}

	for _, i := range strikeRows(ds, side, req.Strike) {
		row := ds.Rows[i]
		if !inWindow(row.Timestamp, req.Start, req.End) {
			continue
		}
		values := make([]float64, 0, len(block.columns))
		for _, field := range block.columns {
			v, ok := row.Number(side.Column(field))
			if !ok {
				break
			}
			values = append(values, v)
		}
		if len(values) == len(block.columns) {
			block.rows = append(block.rows, i)
			block.values[i] = values
		}
	}
	return block
}

func inWindow(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && ts.After(end) {
		return false
	}
	return true
}

func newRelation(a, b string, rho float64) Relation {
	direction, strength := Classify(rho)
	return Relation{
		A:           a,
		B:           b,
		Coefficient: rho,
		Direction:   direction,
		Strength:    strength,
		Text:        fmt.Sprintf("%s and %s: %s %s relation (%.2f)", a, b, strength, direction, rho),
	}
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return -1
}
