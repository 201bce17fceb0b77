package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"chainscope/internal/domain/option_chain"
	"chainscope/internal/metrics"
	"chainscope/pkg/errors"
	"chainscope/pkg/logger"
)

// Warning kinds reported for skipped files
const (
	KindUnparseableFilename   = "UnparseableFilename"
	KindEmptyOrUnreadableFile = "EmptyOrUnreadableFile"
	KindNoSideColumnsFound    = "NoSideColumnsFound"
)

// File is one uploaded snapshot export
type File struct {
	Name string
	Data []byte
}

// Loader reads snapshot files into one combined dataset
type Loader struct {
	log *logger.Logger
}

// NewLoader creates a new snapshot loader
func NewLoader(log *logger.Logger) *Loader {
	return &Loader{
		log: log.With("component", "snapshot_loader"),
	}
}

// frame is one file's rows after schema and timestamp resolution
type frame struct {
	columns []string
	rows    []option_chain.Row
}

// Load parses every file, skipping unusable ones with a warning, and returns the
// union of all rows sorted by timestamp. Warnings are returned even on error.
func (l *Loader) Load(ctx context.Context, files []File) (*option_chain.Dataset, []option_chain.Warning, error) {
	start := time.Now()
	ds, warnings, err := l.load(ctx, files)

	rows := 0
	if ds != nil {
		rows = ds.Len()
	}
	metrics.RecordBatchLoad(time.Since(start), rows, err)
	return ds, warnings, err
}

func (l *Loader) load(ctx context.Context, files []File) (*option_chain.Dataset, []option_chain.Warning, error) {
	var (
		warnings []option_chain.Warning
		frames   []frame
	)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, warnings, errors.Wrap(err, "load cancelled")
		}

		fr, kind, err := l.readFile(f)
		if err != nil {
			warnings = append(warnings, option_chain.Warning{
				File:    f.Name,
				Kind:    kind,
				Message: err.Error(),
			})
			metrics.RecordFile(false)
			metrics.RecordWarning(kind)
			l.log.Warnw("Skipping snapshot file", "file", f.Name, "kind", kind, "error", err)
			continue
		}

		metrics.RecordFile(true)
		l.log.Debugw("Loaded snapshot file",
			"file", f.Name,
			"size", humanize.Bytes(uint64(len(f.Data))),
			"rows", humanize.Comma(int64(len(fr.rows))),
		)
		frames = append(frames, fr)
	}

	if len(frames) == 0 {
		return nil, warnings, errors.Wrapf(errors.ErrNoValidFiles, "%d file(s) uploaded", len(files))
	}

	ds := combine(frames)
	if !ds.HasColumn(option_chain.SideCE.Column(option_chain.FieldStrikePrice)) &&
		!ds.HasColumn(option_chain.SidePE.Column(option_chain.FieldStrikePrice)) {
		return nil, warnings, errors.Wrap(errors.ErrNoStrikeColumn, "expected CE_strikePrice or PE_strikePrice")
	}

	l.log.Infow("Combined snapshot batch",
		"batch_id", ds.ID,
		"files", len(frames),
		"skipped", len(warnings),
		"rows", humanize.Comma(int64(ds.Len())),
		"columns", len(ds.Columns),
	)
	return ds, warnings, nil
}

// readFile returns the warning kind alongside any error
func (l *Loader) readFile(f File) (frame, string, error) {
	r := csv.NewReader(bytes.NewReader(f.Data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return frame{}, KindEmptyOrUnreadableFile, errors.Wrapf(errors.ErrEmptyOrUnreadableFile, "%s: %v", f.Name, err)
	}
	if len(records) == 0 || isBlank(records[0]) {
		return frame{}, KindEmptyOrUnreadableFile, errors.Wrapf(errors.ErrEmptyOrUnreadableFile, "%s: no header", f.Name)
	}
	if len(records) == 1 {
		return frame{}, KindEmptyOrUnreadableFile, errors.Wrapf(errors.ErrEmptyOrUnreadableFile, "%s: no data rows", f.Name)
	}

	schema := NormalizeColumns(records[0])
	if !schema.HasSideData() {
		return frame{}, KindNoSideColumnsFound, errors.Wrapf(errors.ErrNoSideColumns, "%s", f.Name)
	}

	stamp, ok := ParseFilename(f.Name)
	if !ok {
		return frame{}, KindUnparseableFilename, errors.Wrapf(errors.ErrUnparseableFilename, "%s", f.Name)
	}

	fr := frame{
		columns: dedupe(schema.Columns),
		rows:    make([]option_chain.Row, 0, len(records)-1),
	}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		cells := make(map[string]option_chain.Cell, len(schema.Columns))
		for j, column := range schema.Columns {
			if column == "" || j >= len(rec) {
				continue
			}
			raw := strings.TrimSpace(rec[j])
			if raw == "" {
				continue
			}
			// Duplicate headers: the right-most column wins.
			cells[column] = parseCell(raw)
		}
		fr.rows = append(fr.rows, option_chain.Row{
			Timestamp: stamp.Time,
			Stamp:     stamp.Text,
			Label:     stamp.Label,
			Source:    f.Name,
			Cells:     cells,
		})
	}
	if len(fr.rows) == 0 {
		return frame{}, KindEmptyOrUnreadableFile, errors.Wrapf(errors.ErrEmptyOrUnreadableFile, "%s: no data rows", f.Name)
	}
	return fr, "", nil
}

// combine concatenates frames row-wise, unioning their columns in first-seen order
func combine(frames []frame) *option_chain.Dataset {
	ds := &option_chain.Dataset{ID: uuid.NewString()}
	seen := make(map[string]bool)
	total := 0
	for _, fr := range frames {
		for _, c := range fr.columns {
			if c != "" && !seen[c] {
				seen[c] = true
				ds.Columns = append(ds.Columns, c)
			}
		}
		total += len(fr.rows)
	}

	ds.Rows = make([]option_chain.Row, 0, total)
	for _, fr := range frames {
		ds.Rows = append(ds.Rows, fr.rows...)
	}
	sort.SliceStable(ds.Rows, func(i, j int) bool {
		return ds.Rows[i].Timestamp.Before(ds.Rows[j].Timestamp)
	})
	return ds
}

// parseCell keeps the raw text and a numeric reading when one exists.
// Thousands separators are accepted; NaN and Inf are not numbers here.
func parseCell(raw string) option_chain.Cell {
	cell := option_chain.Cell{Raw: raw}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		cell.Num = v
		cell.Numeric = true
	}
	return cell
}

func dedupe(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ReadDir reads every *.csv file in dir, sorted by name
func ReadDir(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", e.Name())
		}
		files = append(files, File{Name: e.Name(), Data: data})
	}
	return files, nil
}
