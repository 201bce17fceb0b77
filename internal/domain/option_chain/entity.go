package option_chain

import (
	"sort"
	"strings"
	"time"
)

// Side is one option side of a strike: call (CE) or put (PE)
type Side string

const (
	SideCE Side = "CE"
	SidePE Side = "PE"
)

// Sides lists both option sides in reporting order
var Sides = []Side{SideCE, SidePE}

// Prefix returns the column prefix for the side, e.g. "CE_"
func (s Side) Prefix() string {
	return string(s) + "_"
}

// Column returns the side-qualified column name for a base field
func (s Side) Column(field string) string {
	return s.Prefix() + field
}

// SideSelector picks one side or both for a query
type SideSelector string

const (
	SelectCE   SideSelector = "CE"
	SelectPE   SideSelector = "PE"
	SelectBoth SideSelector = "Both"
)

// ParseSideSelector accepts CE/PE/Both as well as CALL/PUT, case-insensitive
func ParseSideSelector(raw string) (SideSelector, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CE", "CALL":
		return SelectCE, true
	case "PE", "PUT":
		return SelectPE, true
	case "BOTH", "":
		return SelectBoth, true
	}
	return "", false
}

// Sides expands the selector into concrete sides
func (s SideSelector) Sides() []Side {
	switch s {
	case SelectCE:
		return []Side{SideCE}
	case SelectPE:
		return []Side{SidePE}
	default:
		return []Side{SideCE, SidePE}
	}
}

// Base snapshot fields present per side in the exported option chain
const (
	FieldStrikePrice          = "strikePrice"
	FieldLastPrice            = "lastPrice"
	FieldTotalTradedVolume    = "totalTradedVolume"
	FieldOpenInterest         = "openInterest"
	FieldImpliedVolatility    = "impliedVolatility"
	FieldChangeInOpenInterest = "changeinOpenInterest"
)

// Derived per-side fields
const (
	FieldVolChange   = "volChange"
	FieldOIChange    = "oiChange"
	FieldPriceChange = "priceChange"
	FieldIVChange    = "ivChange"
	FieldPctReturn   = "pctReturn"
)

// Cross-side indicator columns
const (
	ColumnOIImbalance = "OI_imbalance"
	ColumnPCR         = "PCR"
)

// Bookkeeping columns attached by the loader
const (
	ColumnTimestamp = "timestamp"
	ColumnLabel     = "label"
	ColumnSource    = "source"
)

// DeltaFields are the four change metrics used by correlation analysis
var DeltaFields = []string{FieldPriceChange, FieldVolChange, FieldOIChange, FieldIVChange}

// Cell is a single parsed CSV value
type Cell struct {
	Raw     string
	Num     float64
	Numeric bool
}

// NumberCell builds a numeric cell for derived values
func NumberCell(v float64) Cell {
	return Cell{Num: v, Numeric: true}
}

// Row is one strike's call/put quote data at one sampling instant
type Row struct {
	Timestamp time.Time
	Stamp     string // DD-MM-YYYY HH:MM:SS
	Label     string // T0915
	Source    string // originating file name
	Cells     map[string]Cell
}

// Value returns the cell for column; ok is false when the row has no value for it
func (r Row) Value(column string) (Cell, bool) {
	c, ok := r.Cells[column]
	return c, ok
}

// Number returns the numeric value for column; ok is false when absent or non-numeric
func (r Row) Number(column string) (float64, bool) {
	c, ok := r.Cells[column]
	if !ok || !c.Numeric {
		return 0, false
	}
	return c.Num, true
}

// Dataset is the combined, timestamp-ordered snapshot rows of one uploaded batch.
// A Dataset is never mutated after construction; derivation passes build new ones.
type Dataset struct {
	ID      string
	Columns []string
	Rows    []Row
}

// HasColumn reports whether any file in the batch carried column
func (d *Dataset) HasColumn(column string) bool {
	for _, c := range d.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// HasColumns reports whether every listed column is present
func (d *Dataset) HasColumns(columns ...string) bool {
	for _, c := range columns {
		if !d.HasColumn(c) {
			return false
		}
	}
	return true
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// WithColumns returns a copy of the dataset extended by the given columns.
// fill is called for every row of the copy and may add cells to it.
func (d *Dataset) WithColumns(columns []string, fill func(i int, cells map[string]Cell)) *Dataset {
	out := &Dataset{
		ID:      d.ID,
		Columns: make([]string, 0, len(d.Columns)+len(columns)),
		Rows:    make([]Row, len(d.Rows)),
	}
	out.Columns = append(out.Columns, d.Columns...)
	for _, c := range columns {
		if !out.HasColumn(c) {
			out.Columns = append(out.Columns, c)
		}
	}

	for i, row := range d.Rows {
		cells := make(map[string]Cell, len(row.Cells)+len(columns))
		for k, v := range row.Cells {
			cells[k] = v
		}
		row.Cells = cells
		out.Rows[i] = row
		if fill != nil {
			fill(i, cells)
		}
	}
	return out
}

// Strikes returns the distinct numeric strike values of a side, ascending
func (d *Dataset) Strikes(side Side) []float64 {
	column := side.Column(FieldStrikePrice)
	seen := make(map[float64]struct{})
	for _, row := range d.Rows {
		if v, ok := row.Number(column); ok {
			seen[v] = struct{}{}
		}
	}
	strikes := make([]float64, 0, len(seen))
	for v := range seen {
		strikes = append(strikes, v)
	}
	sort.Float64s(strikes)
	return strikes
}

// Warning is a non-fatal per-file problem recorded during a load
type Warning struct {
	File    string `json:"file"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Batch is one uploaded set of snapshot files after the full derivation pipeline
type Batch struct {
	ID        string
	Dataset   *Dataset
	Warnings  []Warning
	Files     []string
	CreatedAt time.Time
}
