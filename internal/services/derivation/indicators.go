package derivation

import (
	"math"
	"time"

	"chainscope/internal/domain/option_chain"
	"chainscope/internal/metrics"
)

// Epsilon keeps ratio denominators away from zero when both sides are inactive
const Epsilon = 1e-9

// ComputeIndicators returns a new dataset with OI_imbalance and PCR where the
// underlying CE/PE columns exist. Each indicator is computed independently.
func ComputeIndicators(ds *option_chain.Dataset) *option_chain.Dataset {
	start := time.Now()
	defer func() { metrics.RecordStage("indicators", time.Since(start)) }()

	ceOI := option_chain.SideCE.Column(option_chain.FieldOpenInterest)
	peOI := option_chain.SidePE.Column(option_chain.FieldOpenInterest)
	ceVol := option_chain.SideCE.Column(option_chain.FieldTotalTradedVolume)
	peVol := option_chain.SidePE.Column(option_chain.FieldTotalTradedVolume)

	withImbalance := ds.HasColumns(ceOI, peOI)
	withPCR := ds.HasColumns(ceVol, peVol)

	var columns []string
	if withImbalance {
		columns = append(columns, option_chain.ColumnOIImbalance)
	}
	if withPCR {
		columns = append(columns, option_chain.ColumnPCR)
	}

	return ds.WithColumns(columns, func(i int, cells map[string]option_chain.Cell) {
		row := ds.Rows[i]
		if withImbalance {
			ce, okCE := row.Number(ceOI)
			pe, okPE := row.Number(peOI)
			if okCE && okPE {
				cells[option_chain.ColumnOIImbalance] = option_chain.NumberCell(OIImbalance(ce, pe))
			}
		}
		if withPCR {
			ce, okCE := row.Number(ceVol)
			pe, okPE := row.Number(peVol)
			if okCE && okPE {
				cells[option_chain.ColumnPCR] = option_chain.NumberCell(PutCallRatio(ce, pe))
			}
		}
	})
}

// OIImbalance is (ce-pe)/(ce+pe+ε), kept strictly inside (-1, 1) for
// non-negative inputs even when ε is lost to rounding on large open interest.
func OIImbalance(ceOI, peOI float64) float64 {
	v := (ceOI - peOI) / (ceOI + peOI + Epsilon)
	switch {
	case v >= 1:
		return math.Nextafter(1, 0)
	case v <= -1:
		return math.Nextafter(-1, 0)
	}
	return v
}

// PutCallRatio is pe/(ce+ε)
func PutCallRatio(ceVolume, peVolume float64) float64 {
	return peVolume / (ceVolume + Epsilon)
}

// Derive runs the full derivation pipeline: deltas, then cross-side indicators
func Derive(ds *option_chain.Dataset) *option_chain.Dataset {
	return ComputeIndicators(ComputeDeltas(ds))
}
