package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"

	"github.com/yungbote/concierge-backend/internal/observability"
)

func metricFamily(t *testing.T, m *observability.Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, l := range metric.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestMetricsLabelsRoutesAndSkipsStreamLatency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.New()

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/chat/threads/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/sse/stream", func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/api/chat/threads/a", "/api/chat/threads/b", "/api/sse/stream", "/wp-login.php"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	counts := map[string]float64{}
	if f := metricFamily(t, m, "concierge_http_requests_total"); f != nil {
		for _, metric := range f.GetMetric() {
			counts[labelValue(metric, "route")] += metric.GetCounter().GetValue()
		}
	}
	if counts["/api/chat/threads/:id"] != 2 || counts["/api/sse/stream"] != 1 || counts[unmatchedRoute] != 1 {
		t.Fatalf("request counts: %v", counts)
	}

	if f := metricFamily(t, m, "concierge_http_request_duration_seconds"); f != nil {
		for _, metric := range f.GetMetric() {
			if labelValue(metric, "route") == "/api/sse/stream" {
				t.Fatalf("stream recorded a latency sample")
			}
		}
	}
}

func TestMetricsWithoutCollectorPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/healthcheck", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got=%d", rec.Code)
	}
}
