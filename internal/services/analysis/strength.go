package analysis

import (
	"sort"

	"chainscope/internal/domain/option_chain"
)

// Strength score weights
const (
	WeightPriceOI     = 0.4
	WeightPriceVolume = 0.3
	WeightImbalance   = 0.3
)

// Bias labels
const (
	BiasBull = "Bull"
	BiasBear = "Bear"
	BiasNA   = "N/A"
)

// StrengthRow is the composite score of one strike. A side without usable
// data is nil, never zero-filled.
type StrengthRow struct {
	Strike float64  `json:"strike"`
	CE     *float64 `json:"CE_Strength,omitempty"`
	PE     *float64 `json:"PE_Strength,omitempty"`
	Bias   string   `json:"Bias"`
}

// StrengthTable scores every strike on each side over the whole dataset:
// 0.4*corr(priceChange, oiChange) + 0.3*corr(priceChange, volChange) + 0.3*mean(OI_imbalance).
// Undefined correlations count as 0.
func StrengthTable(ds *option_chain.Dataset) []StrengthRow {
	strikes := ListStrikes(ds, option_chain.SelectBoth)
	rows := make([]StrengthRow, 0, len(strikes))

	for _, strike := range strikes {
		row := StrengthRow{Strike: strike, Bias: BiasNA}
		for _, side := range option_chain.Sides {
			score, ok := sideStrength(ds, side, strike)
			if !ok {
				continue
			}
			switch side {
			case option_chain.SideCE:
				row.CE = &score
			case option_chain.SidePE:
				row.PE = &score
			}
		}
		if row.CE != nil && row.PE != nil {
			row.Bias = BiasBear
			if *row.CE > *row.PE {
				row.Bias = BiasBull
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Strike < rows[j].Strike })
	return rows
}

func sideStrength(ds *option_chain.Dataset, side option_chain.Side, strike float64) (float64, bool) {
	price := side.Column(option_chain.FieldPriceChange)
	oi := side.Column(option_chain.FieldOIChange)
	vol := side.Column(option_chain.FieldVolChange)
	if !ds.HasColumns(price, oi, vol) {
		return 0, false
	}

	idx := strikeRows(ds, side, strike)
	if len(idx) == 0 {
		return 0, false
	}

	var priceOI, oiVals, priceVol, volVals, imbalance []float64
	for _, i := range idx {
		row := ds.Rows[i]
		p, okP := row.Number(price)
		if o, ok := row.Number(oi); ok && okP {
			priceOI = append(priceOI, p)
			oiVals = append(oiVals, o)
		}
		if v, ok := row.Number(vol); ok && okP {
			priceVol = append(priceVol, p)
			volVals = append(volVals, v)
		}
		if m, ok := row.Number(option_chain.ColumnOIImbalance); ok {
			imbalance = append(imbalance, m)
		}
	}

	corrOI, _ := pearson(priceOI, oiVals)
	corrVol, _ := pearson(priceVol, volVals)
	score := WeightPriceOI*corrOI + WeightPriceVolume*corrVol + WeightImbalance*mean(imbalance)
	return round(score, 4), true
}
