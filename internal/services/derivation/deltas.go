package derivation

import (
	"sort"
	"time"

	"chainscope/internal/domain/option_chain"
	"chainscope/internal/metrics"
)

// requiredFields must all be present for a side before its deltas are computed
var requiredFields = []string{
	option_chain.FieldStrikePrice,
	option_chain.FieldTotalTradedVolume,
	option_chain.FieldOpenInterest,
	option_chain.FieldLastPrice,
	option_chain.FieldImpliedVolatility,
}

// deltaSpec maps a base field to its first-difference column
var deltaSpec = []struct {
	base  string
	delta string
}{
	{option_chain.FieldTotalTradedVolume, option_chain.FieldVolChange},
	{option_chain.FieldOpenInterest, option_chain.FieldOIChange},
	{option_chain.FieldLastPrice, option_chain.FieldPriceChange},
	{option_chain.FieldImpliedVolatility, option_chain.FieldIVChange},
}

// DeltaColumns returns the derived columns ComputeDeltas adds for a side
func DeltaColumns(side option_chain.Side) []string {
	cols := make([]string, 0, len(deltaSpec)+1)
	for _, d := range deltaSpec {
		cols = append(cols, side.Column(d.delta))
	}
	return append(cols, side.Column(option_chain.FieldPctReturn))
}

// SideComputable reports whether the dataset carries every column the side's deltas need
func SideComputable(ds *option_chain.Dataset, side option_chain.Side) bool {
	for _, f := range requiredFields {
		if !ds.HasColumn(side.Column(f)) {
			return false
		}
	}
	return true
}

// ComputeDeltas returns a new dataset with per-strike first differences for every
// side that has the required columns. Sides missing a column get no delta columns.
//
// Within a strike group the first observation gets 0 for every delta. A later
// delta is absent when either operand is non-numeric; pctReturn is 0 when the
// previous price is 0 or absent.
func ComputeDeltas(ds *option_chain.Dataset) *option_chain.Dataset {
	start := time.Now()
	defer func() { metrics.RecordStage("deltas", time.Since(start)) }()

	var sides []option_chain.Side
	var columns []string
	for _, side := range option_chain.Sides {
		if SideComputable(ds, side) {
			sides = append(sides, side)
			columns = append(columns, DeltaColumns(side)...)
		}
	}
	if len(sides) == 0 {
		return ds.WithColumns(nil, nil)
	}

	// Fill cells for the copy after computing groups on the input rows.
	derived := make([]map[string]option_chain.Cell, ds.Len())
	for _, side := range sides {
		for _, group := range groupByStrike(ds, side) {
			applyGroupDeltas(ds, side, group, derived)
		}
	}

	return ds.WithColumns(columns, func(i int, cells map[string]option_chain.Cell) {
		for k, v := range derived[i] {
			cells[k] = v
		}
	})
}

// groupByStrike returns row indexes per numeric strike, each group in time order.
// Rows without a numeric strike belong to no group.
func groupByStrike(ds *option_chain.Dataset, side option_chain.Side) [][]int {
	column := side.Column(option_chain.FieldStrikePrice)
	index := make(map[float64]int)
	var groups [][]int
	for i, row := range ds.Rows {
		strike, ok := row.Number(column)
		if !ok {
			continue
		}
		g, ok := index[strike]
		if !ok {
			g = len(groups)
			index[strike] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}

	for _, g := range groups {
		sort.SliceStable(g, func(a, b int) bool {
			return ds.Rows[g[a]].Timestamp.Before(ds.Rows[g[b]].Timestamp)
		})
	}
	return groups
}

func applyGroupDeltas(ds *option_chain.Dataset, side option_chain.Side, group []int, derived []map[string]option_chain.Cell) {
	priceColumn := side.Column(option_chain.FieldLastPrice)
	pctColumn := side.Column(option_chain.FieldPctReturn)

	for pos, i := range group {
		if derived[i] == nil {
			derived[i] = make(map[string]option_chain.Cell, 10)
		}
		out := derived[i]

		if pos == 0 {
			for _, d := range deltaSpec {
				out[side.Column(d.delta)] = option_chain.NumberCell(0)
			}
			out[pctColumn] = option_chain.NumberCell(0)
			continue
		}

		cur, prev := ds.Rows[i], ds.Rows[group[pos-1]]
		for _, d := range deltaSpec {
			column := side.Column(d.base)
			c, okC := cur.Number(column)
			p, okP := prev.Number(column)
			if okC && okP {
				out[side.Column(d.delta)] = option_chain.NumberCell(c - p)
			}
		}

		price, ok := cur.Number(priceColumn)
		if !ok {
			continue
		}
		prevPrice, ok := prev.Number(priceColumn)
		out[pctColumn] = option_chain.NumberCell(PercentChange(prevPrice, price, ok))
	}
}

// PercentChange returns (cur-prev)/prev*100, or 0 when prev is missing or zero
func PercentChange(prev, cur float64, prevOK bool) float64 {
	if !prevOK || prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
