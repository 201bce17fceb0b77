package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chainscope/pkg/logger"
)

// WorkingSet is the part of the batch store the probes look at
type WorkingSet interface {
	BatchCount(ctx context.Context) int
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	batches     WorkingSet
	maxBatches  int
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler
func New(log *logger.Logger, batches WorkingSet, maxBatches int, serviceName, version string) *Handler {
	return &Handler{
		log:         log,
		batches:     batches,
		maxBatches:  maxBatches,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Register mounts the probes
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
	r.GET("/livez", h.live)
}

// live returns 200 OK if the process is running
func (h *Handler) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, h.status("healthy", nil))
}

// ready reports the in-memory working set. The batch store has no external
// dependency, so the only failure is a missing store.
func (h *Handler) ready(c *gin.Context) {
	if h.batches == nil {
		h.log.Warnw("Readiness check failed", "reason", "batch store missing")
		c.JSON(http.StatusServiceUnavailable, h.status("unhealthy", map[string]ComponentHealth{
			"batches": {Status: "unhealthy", Detail: "batch store missing"},
		}))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	count := h.batches.BatchCount(ctx)
	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"service":     h.serviceName,
		"version":     h.version,
		"batches":     count,
		"max_batches": h.maxBatches,
	})
}

func (h *Handler) status(status string, checks map[string]ComponentHealth) HealthStatus {
	return HealthStatus{
		Status:    status,
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}
}
