package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"chainscope/internal/adapters/config"
	"chainscope/internal/domain/option_chain"
	"chainscope/internal/repository/memory"
	"chainscope/internal/services/analysis"
	"chainscope/internal/services/export"
	"chainscope/internal/services/ingest"
	chainsvc "chainscope/internal/services/option_chain"
	"chainscope/pkg/errors"
	"chainscope/pkg/logger"
)

// defaultSeriesMetrics are the three charts of the strike view
const defaultSeriesMetrics = "lastPrice,totalTradedVolume,changeinOpenInterest"

type analyzeOptions struct {
	dir       string
	out       string
	strike    float64
	hasStrike bool
	side      option_chain.SideSelector
	metrics   []string
	period    int
}

func parseAnalyzeFlags(args []string) (analyzeOptions, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	dir := fs.String("dir", "", "directory of option chain CSV snapshots")
	out := fs.String("out", ".", "output directory for CSV exports")
	strike := fs.String("strike", "", "strike for series and correlation exports")
	side := fs.String("side", "Both", "CE, PE or Both")
	metricList := fs.String("metrics", defaultSeriesMetrics, "comma separated series metrics")
	period := fs.Int("period", 0, "rolling correlation window (0 = configured default)")

	if err := fs.Parse(args); err != nil {
		return analyzeOptions{}, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}

	opts := analyzeOptions{dir: *dir, out: *out, period: *period}
	if opts.dir == "" {
		return opts, errors.NewValidationError("dir", "is required", "")
	}

	sel, ok := option_chain.ParseSideSelector(*side)
	if !ok {
		return opts, errors.NewValidationError("side", "must be CE, PE or Both", *side)
	}
	opts.side = sel

	if *strike != "" {
		v, err := strconv.ParseFloat(*strike, 64)
		if err != nil {
			return opts, errors.NewValidationError("strike", "must be numeric", *strike)
		}
		opts.strike, opts.hasStrike = v, true
	}

	for _, m := range strings.Split(*metricList, ",") {
		if m = strings.TrimSpace(m); m != "" {
			opts.metrics = append(opts.metrics, m)
		}
	}
	return opts, nil
}

// runAnalyze loads a directory once and writes the CSV exports
func runAnalyze(ctx context.Context, cfg *config.Config, errorTracker errors.Tracker, args []string, log *logger.Logger) error {
	opts, err := parseAnalyzeFlags(args)
	if err != nil {
		return err
	}

	files, err := ingest.ReadDir(opts.dir)
	if err != nil {
		return err
	}

	svc := chainsvc.NewService(memory.NewBatchRepository(1), ingest.NewLoader(log), errorTracker, cfg.Analysis.RollingPeriod, log)
	return analyze(ctx, svc, files, opts, log)
}

func analyze(ctx context.Context, svc *chainsvc.Service, files []ingest.File, opts analyzeOptions, log *logger.Logger) error {
	batch, err := svc.LoadBatch(ctx, files)
	if batch != nil {
		for _, w := range batch.Warnings {
			log.Warnw("Skipped file", "file", w.File, "kind", w.Kind, "reason", w.Message)
		}
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %s", opts.out)
	}

	if err := writeExport(opts.out, "dataset.csv", func(w io.Writer) error {
		return export.WriteDataset(w, batch.Dataset)
	}); err != nil {
		return err
	}

	strength, err := svc.StrengthTable(ctx, batch.ID)
	if err != nil {
		return err
	}
	if err := writeExport(opts.out, "strength.csv", func(w io.Writer) error {
		return export.WriteStrength(w, strength)
	}); err != nil {
		return err
	}

	if !opts.hasStrike {
		log.Infow("Analysis written", "out", opts.out, "rows", batch.Dataset.Len(), "strikes", len(strength))
		return nil
	}

	for _, metric := range opts.metrics {
		res, err := svc.QuerySeries(ctx, batch.ID, analysis.SeriesRequest{
			Strike: opts.strike,
			Side:   opts.side,
			Metric: metric,
		})
		if errors.Is(err, errors.ErrUnknownMetric) {
			log.Warnw("Metric not in dataset", "metric", metric)
			continue
		}
		if err != nil {
			return err
		}
		if err := writeExport(opts.out, "series_"+res.Metric+".csv", func(w io.Writer) error {
			return export.WriteSeries(w, res)
		}); err != nil {
			return err
		}
	}

	corr, err := svc.Correlate(ctx, batch.ID, analysis.CorrelationRequest{Strike: opts.strike, Side: opts.side})
	if err != nil {
		return err
	}
	if corr.Insufficient {
		log.Infow("Correlation skipped", "strike", opts.strike, "reason", corr.Reason)
	}
	if err := writeExport(opts.out, "correlation.csv", func(w io.Writer) error {
		return export.WriteCorrelation(w, corr)
	}); err != nil {
		return err
	}

	for _, side := range opts.side.Sides() {
		rolling, err := svc.RollingCorrelation(ctx, batch.ID, analysis.RollingRequest{
			Strike: opts.strike,
			Side:   side,
			Period: opts.period,
		})
		if errors.Is(err, errors.ErrUnknownMetric) {
			continue
		}
		if err != nil {
			return err
		}
		if err := writeExport(opts.out, "rolling_"+string(side)+".csv", func(w io.Writer) error {
			return export.WriteRolling(w, rolling)
		}); err != nil {
			return err
		}
	}

	log.Infow("Analysis written", "out", opts.out, "rows", batch.Dataset.Len(), "strike", opts.strike)
	return nil
}

func writeExport(dir, name string, write func(io.Writer) error) error {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
