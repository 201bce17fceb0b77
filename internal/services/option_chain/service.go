package option_chain

import (
	"context"
	"time"

	"chainscope/internal/domain/option_chain"
	"chainscope/internal/metrics"
	"chainscope/internal/services/analysis"
	"chainscope/internal/services/derivation"
	"chainscope/internal/services/ingest"
	"chainscope/pkg/errors"
	"chainscope/pkg/logger"
)

// Service is the query interface over uploaded batches.
// Every call names its batch and carries its full selection; nothing is
// remembered between calls except the batches themselves.
type Service struct {
	repo          option_chain.BatchRepository
	loader        *ingest.Loader
	tracker       errors.Tracker
	rollingPeriod int
	log           *logger.Logger
}

// NewService creates a new option chain service
func NewService(
	repo option_chain.BatchRepository,
	loader *ingest.Loader,
	tracker errors.Tracker,
	rollingPeriod int,
	log *logger.Logger,
) *Service {
	if rollingPeriod == 0 {
		rollingPeriod = analysis.DefaultRollingPeriod
	}
	return &Service{
		repo:          repo,
		loader:        loader,
		tracker:       tracker,
		rollingPeriod: rollingPeriod,
		log:           log.With("component", "option_chain_service"),
	}
}

// LoadBatch loads, derives and stores one upload. On a load failure the
// returned batch is non-nil and carries the per-file warnings only.
func (s *Service) LoadBatch(ctx context.Context, files []ingest.File) (*option_chain.Batch, error) {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}

	s.tracker.AddBreadcrumb(ctx, "load batch", "pipeline", errors.LevelInfo, map[string]interface{}{
		"files": len(files),
	})

	ds, warnings, err := s.loader.Load(ctx, files)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			_ = s.tracker.CaptureError(ctx, err, map[string]string{"stage": "load"})
		}
		s.log.Warnw("Batch load failed",
			"files", len(files),
			"warnings", len(warnings),
			"error", err,
		)
		return &option_chain.Batch{Warnings: warnings, Files: names}, errors.Wrap(err, "load batch")
	}

	batch := &option_chain.Batch{
		ID:        ds.ID,
		Dataset:   derivation.Derive(ds),
		Warnings:  warnings,
		Files:     names,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, batch); err != nil {
		return nil, errors.Wrap(err, "save batch")
	}

	s.log.Infow("Batch loaded",
		"batch_id", batch.ID,
		"rows", batch.Dataset.Len(),
		"columns", len(batch.Dataset.Columns),
		"warnings", len(warnings),
	)
	return batch, nil
}

// Batch returns a stored batch
func (s *Service) Batch(ctx context.Context, id string) (*option_chain.Batch, error) {
	batch, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get batch")
	}
	return batch, nil
}

// DeleteBatch drops a batch from the working set
func (s *Service) DeleteBatch(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete batch")
	}
	s.log.Debugw("Batch deleted", "batch_id", id)
	return nil
}

// BatchCount returns the number of batches held
func (s *Service) BatchCount(ctx context.Context) int {
	return s.repo.Count(ctx)
}

// ListStrikes returns the sorted strikes of a batch for the selected side(s)
func (s *Service) ListStrikes(ctx context.Context, id string, sel option_chain.SideSelector) (strikes []float64, err error) {
	defer s.observe("strikes", time.Now(), &err, func() bool { return len(strikes) == 0 })

	ds, err := s.dataset(ctx, id)
	if err != nil {
		return nil, err
	}
	return analysis.ListStrikes(ds, sel), nil
}

// QuerySeries returns one metric series per selected side
func (s *Service) QuerySeries(ctx context.Context, id string, req analysis.SeriesRequest) (res analysis.SeriesResult, err error) {
	defer s.observe("series", time.Now(), &err, func() bool { return res.Empty() })

	ds, err := s.dataset(ctx, id)
	if err != nil {
		return analysis.SeriesResult{}, err
	}
	return analysis.QuerySeries(ds, req)
}

// Correlate returns the delta-metric correlation matrix of one strike
func (s *Service) Correlate(ctx context.Context, id string, req analysis.CorrelationRequest) (res *analysis.CorrelationResult, err error) {
	start := time.Now()
	ds, err := s.dataset(ctx, id)
	if err != nil {
		s.observe("correlation", start, &err, nil)
		return nil, err
	}

	res = analysis.Correlate(ds, req)
	if res.Insufficient {
		metrics.RecordQuery("correlation", "insufficient", time.Since(start))
		s.log.Debugw("Insufficient correlation data",
			"batch_id", id,
			"strike", req.Strike,
			"side", req.Side,
			"reason", res.Reason,
		)
		return res, nil
	}
	s.observe("correlation", start, &err, nil)
	return res, nil
}

// StrengthTable returns the per-strike composite strength of a batch
func (s *Service) StrengthTable(ctx context.Context, id string) (rows []analysis.StrengthRow, err error) {
	defer s.observe("strength", time.Now(), &err, func() bool { return len(rows) == 0 })

	ds, err := s.dataset(ctx, id)
	if err != nil {
		return nil, err
	}
	return analysis.StrengthTable(ds), nil
}

// RollingCorrelation returns a rolling correlation series. A zero period uses
// the configured default.
func (s *Service) RollingCorrelation(ctx context.Context, id string, req analysis.RollingRequest) (res analysis.RollingSeries, err error) {
	defer s.observe("rolling", time.Now(), &err, func() bool { return len(res.Points) == 0 })

	ds, err := s.dataset(ctx, id)
	if err != nil {
		return analysis.RollingSeries{}, err
	}
	if req.Period == 0 {
		req.Period = s.rollingPeriod
	}
	return analysis.RollingCorrelation(ds, req)
}

func (s *Service) dataset(ctx context.Context, id string) (*option_chain.Dataset, error) {
	batch, err := s.Batch(ctx, id)
	if err != nil {
		return nil, err
	}
	return batch.Dataset, nil
}

// observe records a query outcome. empty may be nil.
func (s *Service) observe(operation string, start time.Time, err *error, empty func() bool) {
	status := "ok"
	switch {
	case *err != nil && errors.Is(*err, errors.ErrNotFound):
		status = "not_found"
	case *err != nil && (errors.Is(*err, errors.ErrInvalidInput) || errors.Is(*err, errors.ErrUnknownMetric)):
		status = "invalid"
	case *err != nil:
		status = "error"
	case empty != nil && empty():
		status = "empty"
	}
	metrics.RecordQuery(operation, status, time.Since(start))
}
