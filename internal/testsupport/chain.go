package testsupport

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"chainscope/internal/domain/option_chain"
)

// SessionOpen is the timestamp of the first snapshot in built datasets
var SessionOpen = time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)

// ChainBuilder assembles option chain datasets for tests without going through CSV
type ChainBuilder struct {
	columns []string
	seen    map[string]bool
	rows    []option_chain.Row
}

// NewChain creates an empty builder
func NewChain() *ChainBuilder {
	return &ChainBuilder{seen: make(map[string]bool)}
}

// At adds a row sampled minute minutes after SessionOpen with numeric cells
func (b *ChainBuilder) At(minute int, values map[string]float64) *ChainBuilder {
	raw := make(map[string]string, len(values))
	for k, v := range values {
		raw[k] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return b.AtRaw(minute, raw)
}

// AtRaw adds a row from raw text cells; non-numeric text stays non-numeric
func (b *ChainBuilder) AtRaw(minute int, values map[string]string) *ChainBuilder {
	ts := SessionOpen.Add(time.Duration(minute) * time.Minute)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cells := make(map[string]option_chain.Cell, len(values))
	for _, k := range keys {
		if !b.seen[k] {
			b.seen[k] = true
			b.columns = append(b.columns, k)
		}
		cell := option_chain.Cell{Raw: values[k]}
		if v, err := strconv.ParseFloat(values[k], 64); err == nil {
			cell.Num, cell.Numeric = v, true
		}
		cells[k] = cell
	}

	b.rows = append(b.rows, option_chain.Row{
		Timestamp: ts,
		Stamp:     ts.Format("02-01-2006 15:04:05"),
		Label:     "T" + ts.Format("1504"),
		Source:    fmt.Sprintf("NIFTY_%s.csv", ts.Format("02012006_150405")),
		Cells:     cells,
	})
	return b
}

// Build returns the dataset with rows stably sorted by timestamp
func (b *ChainBuilder) Build() *option_chain.Dataset {
	rows := append([]option_chain.Row(nil), b.rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	return &option_chain.Dataset{
		ID:      "test-batch",
		Columns: append([]string(nil), b.columns...),
		Rows:    rows,
	}
}

// Quote returns the five base columns of one side
func Quote(side option_chain.Side, strike, price, volume, oi, iv float64) map[string]float64 {
	return map[string]float64{
		side.Column(option_chain.FieldStrikePrice):       strike,
		side.Column(option_chain.FieldLastPrice):         price,
		side.Column(option_chain.FieldTotalTradedVolume): volume,
		side.Column(option_chain.FieldOpenInterest):      oi,
		side.Column(option_chain.FieldImpliedVolatility): iv,
	}
}

// Merge combines cell maps; later maps win
func Merge(parts ...map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

// SnapshotCSV renders one option chain CSV export with both sides for the given strikes
func SnapshotCSV(strikes []float64, price, volume, oi, iv float64) []byte {
	out := "CE_strikePrice,CE_lastPrice,CE_totalTradedVolume,CE_openInterest,CE_impliedVolatility," +
		"PE_strikePrice,PE_lastPrice,PE_totalTradedVolume,PE_openInterest,PE_impliedVolatility\n"
	for _, s := range strikes {
		out += fmt.Sprintf("%g,%g,%g,%g,%g,%g,%g,%g,%g,%g\n",
			s, price, volume, oi, iv,
			s, price/2, volume*2, oi/2, iv+1)
	}
	return []byte(out)
}
