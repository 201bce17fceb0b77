package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chainscope/internal/adapters/ratelimit"
	"chainscope/internal/domain/option_chain"
	"chainscope/internal/metrics"
	"chainscope/internal/services/analysis"
	"chainscope/internal/services/export"
	"chainscope/internal/services/ingest"
	"chainscope/pkg/errors"
	"chainscope/pkg/logger"
)

// BatchService is the query interface the batch routes are served from
type BatchService interface {
	LoadBatch(ctx context.Context, files []ingest.File) (*option_chain.Batch, error)
	Batch(ctx context.Context, id string) (*option_chain.Batch, error)
	DeleteBatch(ctx context.Context, id string) error
	ListStrikes(ctx context.Context, id string, sel option_chain.SideSelector) ([]float64, error)
	QuerySeries(ctx context.Context, id string, req analysis.SeriesRequest) (analysis.SeriesResult, error)
	Correlate(ctx context.Context, id string, req analysis.CorrelationRequest) (*analysis.CorrelationResult, error)
	StrengthTable(ctx context.Context, id string) ([]analysis.StrengthRow, error)
	RollingCorrelation(ctx context.Context, id string, req analysis.RollingRequest) (analysis.RollingSeries, error)
}

type BatchHandler struct {
	Service        BatchService
	UploadLimiter  *ratelimit.KeyedLimiter
	MaxUploadBytes int64
	Log            *logger.Logger
}

func (h *BatchHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/batches")
	group.POST("", h.limitUploads(), h.upload)
	group.GET("/:id", h.getBatch)
	group.DELETE("/:id", h.deleteBatch)
	group.GET("/:id/warnings", h.warnings)
	group.GET("/:id/strikes", h.strikes)
	group.GET("/:id/series", h.series)
	group.GET("/:id/correlation", h.correlation)
	group.GET("/:id/rolling", h.rolling)
	group.GET("/:id/strength", h.strength)
}

type batchSummary struct {
	BatchID   string                 `json:"batch_id"`
	Rows      int                    `json:"rows"`
	Columns   []string               `json:"columns"`
	Files     []string               `json:"files"`
	Warnings  []option_chain.Warning `json:"warnings"`
	CreatedAt time.Time              `json:"created_at"`
}

func summarize(b *option_chain.Batch) batchSummary {
	warnings := b.Warnings
	if warnings == nil {
		warnings = []option_chain.Warning{}
	}
	return batchSummary{
		BatchID:   b.ID,
		Rows:      b.Dataset.Len(),
		Columns:   b.Dataset.Columns,
		Files:     b.Files,
		Warnings:  warnings,
		CreatedAt: b.CreatedAt,
	}
}

func (h *BatchHandler) limitUploads() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.UploadLimiter != nil && !h.UploadLimiter.Allow(c.ClientIP()) {
			metrics.RecordUploadRejected("rate_limited")
			c.Header("Retry-After", "1")
			Fail(c, errors.ErrRateLimitExceeded, nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *BatchHandler) upload(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			metrics.RecordUploadRejected("too_large")
			Error(c, http.StatusRequestEntityTooLarge, "upload too large", map[string]any{"max_bytes": h.MaxUploadBytes})
			return
		}
		metrics.RecordUploadRejected("no_files")
		Error(c, http.StatusBadRequest, "multipart form with files required", nil)
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		metrics.RecordUploadRejected("no_files")
		Error(c, http.StatusBadRequest, "no files uploaded", nil)
		return
	}

	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			Fail(c, err, nil)
			return
		}
		files = append(files, ingest.File{Name: fh.Filename, Data: data})
	}

	batch, err := h.Service.LoadBatch(c.Request.Context(), files)
	if err != nil {
		var meta map[string]any
		if batch != nil {
			meta = map[string]any{"warnings": batch.Warnings}
		}
		Fail(c, err, meta)
		return
	}

	h.Log.Infow("Batch uploaded",
		"batch_id", batch.ID,
		"files", len(files),
		"client", c.ClientIP(),
	)
	Ok(c, summarize(batch), nil)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "open upload %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read upload %s", fh.Filename)
	}
	return data, nil
}

func (h *BatchHandler) getBatch(c *gin.Context) {
	batch, err := h.Service.Batch(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err, nil)
		return
	}
	if wantsCSV(c) {
		CSV(c, "dataset.csv", func(w io.Writer) error { return export.WriteDataset(w, batch.Dataset) })
		return
	}
	Ok(c, summarize(batch), nil)
}

func (h *BatchHandler) deleteBatch(c *gin.Context) {
	id := c.Param("id")
	if err := h.Service.DeleteBatch(c.Request.Context(), id); err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, gin.H{"batch_id": id}, nil)
}

func (h *BatchHandler) warnings(c *gin.Context) {
	batch, err := h.Service.Batch(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err, nil)
		return
	}
	if wantsCSV(c) {
		CSV(c, "warnings.csv", func(w io.Writer) error { return export.WriteWarnings(w, batch.Warnings) })
		return
	}
	Ok(c, summarize(batch).Warnings, nil)
}

func (h *BatchHandler) strikes(c *gin.Context) {
	sel, err := sideQuery(c)
	if err != nil {
		Fail(c, err, nil)
		return
	}

	strikes, err := h.Service.ListStrikes(c.Request.Context(), c.Param("id"), sel)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	if wantsCSV(c) {
		CSV(c, "strikes.csv", func(w io.Writer) error { return export.WriteStrikes(w, strikes) })
		return
	}
	Ok(c, strikes, map[string]any{"side": sel, "count": len(strikes)})
}

func (h *BatchHandler) series(c *gin.Context) {
	strike, err := strikeQuery(c)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	sel, err := sideQuery(c)
	if err != nil {
		Fail(c, err, nil)
		return
	}

	res, err := h.Service.QuerySeries(c.Request.Context(), c.Param("id"), analysis.SeriesRequest{
		Strike: strike,
		Side:   sel,
		Metric: c.Query("metric"),
		Chart:  analysis.ParseChartKind(c.Query("chart")),
	})
	if err != nil {
		Fail(c, err, nil)
		return
	}
	if wantsCSV(c) {
		CSV(c, fmt.Sprintf("series_%s.csv", res.Metric), func(w io.Writer) error { return export.WriteSeries(w, res) })
		return
	}
	Ok(c, res, map[string]any{"empty": res.Empty()})
}

func (h *BatchHandler) correlation(c *gin.Context) {
	strike, err := strikeQuery(c)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	sel, err := sideQuery(c)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	start, err := timeQuery(c, "start")
	if err != nil {
		Fail(c, err, nil)
		return
	}
	end, err := timeQuery(c, "end")
	if err != nil {
		Fail(c, err, nil)
		return
	}

	res, err := h.Service.Correlate(c.Request.Context(), c.Param("id"), analysis.CorrelationRequest{
		Strike: strike,
		Side:   sel,
		Start:  start,
		End:    end,
	})
	if err != nil {
		Fail(c, err, nil)
		return
	}
	if wantsCSV(c) {
		CSV(c, "correlation.csv", func(w io.Writer) error { return export.WriteCorrelation(w, res) })
		return
	}
	Ok(c, res, nil)
}

func (h *BatchHandler) rolling(c *gin.Context) {
	strike, err := strikeQuery(c)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	side := option_chain.SideCE
	if raw := c.Query("side"); raw != "" {
		sel, ok := option_chain.ParseSideSelector(raw)
		if !ok || sel == option_chain.SelectBoth {
			Fail(c, errors.NewValidationError("side", "must be CE or PE", raw), nil)
			return
		}
		side = sel.Sides()[0]
	}
	period := 0
	if raw := c.Query("period"); raw != "" {
		if period, err = strconv.Atoi(raw); err != nil {
			Fail(c, errors.NewValidationError("period", "must be an integer", raw), nil)
			return
		}
	}

	res, err := h.Service.RollingCorrelation(c.Request.Context(), c.Param("id"), analysis.RollingRequest{
		Strike: strike,
		Side:   side,
		X:      c.Query("x"),
		Y:      c.Query("y"),
		Period: period,
	})
	if err != nil {
		Fail(c, err, nil)
		return
	}
	if wantsCSV(c) {
		CSV(c, "rolling.csv", func(w io.Writer) error { return export.WriteRolling(w, res) })
		return
	}
	Ok(c, res, nil)
}

func (h *BatchHandler) strength(c *gin.Context) {
	rows, err := h.Service.StrengthTable(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err, nil)
		return
	}
	if wantsCSV(c) {
		CSV(c, "strength.csv", func(w io.Writer) error { return export.WriteStrength(w, rows) })
		return
	}
	Ok(c, rows, map[string]any{"count": len(rows)})
}

func strikeQuery(c *gin.Context) (float64, error) {
	raw := strings.TrimSpace(c.Query("strike"))
	if raw == "" {
		return 0, errors.NewValidationError("strike", "is required", raw)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.NewValidationError("strike", "must be numeric", raw)
	}
	return v, nil
}

func sideQuery(c *gin.Context) (option_chain.SideSelector, error) {
	raw := c.Query("side")
	sel, ok := option_chain.ParseSideSelector(raw)
	if !ok {
		return "", errors.NewValidationError("side", "must be CE, PE or Both", raw)
	}
	return sel, nil
}

// timeQuery accepts the snapshot stamp form (DD-MM-YYYY HH:MM:SS) or RFC3339.
// An empty value leaves that end of the window open.
func timeQuery(c *gin.Context, key string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := ingest.ParseStampText(raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.NewValidationError(key, "must be DD-MM-YYYY HH:MM:SS or RFC3339", raw)
}
