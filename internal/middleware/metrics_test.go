package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"

	"github.com/nexocrm/nexo-backend/internal/telemetry"
)

func counterValue(t *testing.T, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := telemetry.HTTPRequestsTotal.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetricsMiddleware_CountsRequests(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/api/system-activities/entity/:type/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	before := counterValue(t, "GET", "/api/system-activities/entity/:type/:id", "200")

	req := httptest.NewRequest(http.MethodGet, "/api/system-activities/entity/lead/L1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	after := counterValue(t, "GET", "/api/system-activities/entity/:type/:id", "200")
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func TestMetricsMiddleware_UnmatchedRouteUsesPlaceholder(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware())

	before := counterValue(t, "GET", "<no-route>", "404")

	req := httptest.NewRequest(http.MethodGet, "/definitely/not/registered", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	after := counterValue(t, "GET", "<no-route>", "404")
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}
