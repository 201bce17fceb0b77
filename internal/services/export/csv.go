package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"chainscope/internal/domain/option_chain"
	"chainscope/internal/services/analysis"
	"chainscope/pkg/errors"
)

// Every writer emits a header of field names followed by rows in the result's
// existing order. Absent values are written as empty fields.

// WriteDataset writes the combined (optionally derived) dataset
func WriteDataset(w io.Writer, ds *option_chain.Dataset) error {
	header := append([]string{option_chain.ColumnTimestamp, option_chain.ColumnLabel, option_chain.ColumnSource}, ds.Columns...)
	records := make([][]string, 0, ds.Len())
	for _, row := range ds.Rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, row.Stamp, row.Label, row.Source)
		for _, c := range ds.Columns {
			rec = append(rec, formatCell(row, c))
		}
		records = append(records, rec)
	}
	return write(w, header, records)
}

// WriteSeries writes every series of a query result, tagged by side
func WriteSeries(w io.Writer, res analysis.SeriesResult) error {
	header := []string{"side", "column", option_chain.ColumnTimestamp, option_chain.ColumnLabel, "value", "missing"}
	var records [][]string
	for _, s := range res.Series {
		for _, p := range s.Points {
			records = append(records, []string{
				string(s.Side), s.Column, p.Stamp, p.Label, formatFloat(p.Value), strconv.FormatBool(p.Missing),
			})
		}
	}
	return write(w, header, records)
}

// WriteCorrelation writes the matrix with metric names as the first column.
// An insufficient result is written as a single status row.
func WriteCorrelation(w io.Writer, res *analysis.CorrelationResult) error {
	if res.Insufficient {
		return write(w, []string{"status", "reason"}, [][]string{{"insufficient_data", res.Reason}})
	}

	header := append([]string{"metric"}, res.Columns...)
	records := make([][]string, 0, len(res.Columns))
	for i, name := range res.Columns {
		rec := make([]string, 0, len(header))
		rec = append(rec, name)
		for _, coef := range res.Matrix[i] {
			if coef.Valid {
				rec = append(rec, formatFloat(coef.Value))
			} else {
				rec = append(rec, "")
			}
		}
		records = append(records, rec)
	}
	return write(w, header, records)
}

// WriteRelations writes the classified metric pairs
func WriteRelations(w io.Writer, relations []analysis.Relation) error {
	header := []string{"a", "b", "coefficient", "direction", "strength"}
	records := make([][]string, 0, len(relations))
	for _, r := range relations {
		records = append(records, []string{r.A, r.B, formatFloat(r.Coefficient), r.Direction, r.Strength})
	}
	return write(w, header, records)
}

// WriteStrength writes the per-strike strength table
func WriteStrength(w io.Writer, rows []analysis.StrengthRow) error {
	header := []string{"strike", "CE_Strength", "PE_Strength", "Bias"}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{formatFloat(r.Strike), formatOptional(r.CE), formatOptional(r.PE), r.Bias})
	}
	return write(w, header, records)
}

// WriteRolling writes a rolling correlation series
func WriteRolling(w io.Writer, s analysis.RollingSeries) error {
	header := []string{option_chain.ColumnTimestamp, option_chain.ColumnLabel, "correlation"}
	records := make([][]string, 0, len(s.Points))
	for _, p := range s.Points {
		value := ""
		if !p.Missing {
			value = formatFloat(p.Value)
		}
		records = append(records, []string{p.Stamp, p.Label, value})
	}
	return write(w, header, records)
}

// WriteStrikes writes one strike per row
func WriteStrikes(w io.Writer, strikes []float64) error {
	records := make([][]string, 0, len(strikes))
	for _, s := range strikes {
		records = append(records, []string{formatFloat(s)})
	}
	return write(w, []string{"strike"}, records)
}

// WriteWarnings writes the per-file warnings of a load
func WriteWarnings(w io.Writer, warnings []option_chain.Warning) error {
	header := []string{"file", "kind", "message"}
	records := make([][]string, 0, len(warnings))
	for _, wr := range warnings {
		records = append(records, []string{wr.File, wr.Kind, wr.Message})
	}
	return write(w, header, records)
}

func write(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(records); err != nil {
		return errors.Wrap(err, "write csv rows")
	}
	return nil
}

func formatCell(row option_chain.Row, column string) string {
	cell, ok := row.Value(column)
	if !ok {
		return ""
	}
	if cell.Raw != "" {
		return cell.Raw
	}
	return formatFloat(cell.Num)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
