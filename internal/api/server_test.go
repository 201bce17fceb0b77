package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"chainscope/internal/adapters/errors/noop"
	"chainscope/internal/api/handler"
	"chainscope/internal/api/health"
	"chainscope/internal/repository/memory"
	"chainscope/internal/services/ingest"
	chainsvc "chainscope/internal/services/option_chain"
	"chainscope/pkg/logger"
)

func TestServerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	svc := chainsvc.NewService(memory.NewBatchRepository(2), ingest.NewLoader(log), noop.New(), 0, log)

	srv := NewServer(
		ServerConfig{Port: 18080, ServiceName: "chainscope", Version: "test"},
		health.New(log, svc, 2, "chainscope", "test"),
		&handler.BatchHandler{Service: svc, Log: log},
		log,
	)

	for path, want := range map[string]int{
		"/":                          http.StatusOK,
		"/healthz":                   http.StatusOK,
		"/readyz":                    http.StatusOK,
		"/metrics":                   http.StatusOK,
		"/api/v1/batches/missing":    http.StatusNotFound,
		"/api/v1/batches/x/strength": http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}
