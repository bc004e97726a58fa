package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gather(t *testing.T, m *MetricsCollector) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}
	return byName
}

func TestMetricsCollectorRegistersAll(t *testing.T) {
	m := NewMetricsCollector()

	m.DiscoveriesTotal.WithLabelValues("ok").Inc()
	m.DiscoveryDuration.Observe(0.002)
	m.DiscoveryResults.Observe(3)
	m.MatchScores.Observe(0.42)
	m.CatalogSize.Set(7)
	m.AdvertisementsTotal.WithLabelValues("register").Inc()
	m.ConnectedAgents.Set(2)
	m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/discover", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("POST", "/v1/discover").Observe(0.01)
	m.ActiveRequests.Inc()

	byName := gather(t, m)

	want := []string{
		"actiondex_discovery_requests_total",
		"actiondex_discovery_duration_seconds",
		"actiondex_discovery_results",
		"actiondex_discovery_top_score",
		"actiondex_catalog_size",
		"actiondex_catalog_advertisements_total",
		"actiondex_gateway_connected_agents",
		"actiondex_http_requests_total",
		"actiondex_http_request_duration_seconds",
		"actiondex_http_active_requests",
	}
	for _, name := range want {
		if _, ok := byName[name]; !ok {
			t.Errorf("metric family %q not registered", name)
		}
	}
}

func TestMetricsCollectorCounterValues(t *testing.T) {
	m := NewMetricsCollector()

	m.DiscoveriesTotal.WithLabelValues("ok").Inc()
	m.DiscoveriesTotal.WithLabelValues("ok").Inc()
	m.DiscoveriesTotal.WithLabelValues("error").Inc()

	byName := gather(t, m)
	family, ok := byName["actiondex_discovery_requests_total"]
	if !ok {
		t.Fatal("discovery counter family missing")
	}

	totals := make(map[string]float64)
	for _, metric := range family.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "status" {
				totals[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if totals["ok"] != 2 {
		t.Errorf("status=ok count = %v, want 2", totals["ok"])
	}
	if totals["error"] != 1 {
		t.Errorf("status=error count = %v, want 1", totals["error"])
	}
}

func TestMetricsCollectorGaugeSet(t *testing.T) {
	m := NewMetricsCollector()
	m.CatalogSize.Set(42)

	byName := gather(t, m)
	family, ok := byName["actiondex_catalog_size"]
	if !ok {
		t.Fatal("catalog size gauge missing")
	}
	if got := family.GetMetric()[0].GetGauge().GetValue(); got != 42 {
		t.Errorf("catalog size = %v, want 42", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetricsCollector()

	handler := HTTPMetricsMiddleware(m, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/v1/actions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	byName := gather(t, m)
	family, ok := byName["actiondex_http_requests_total"]
	if !ok {
		t.Fatal("http requests counter missing")
	}
	labels := make(map[string]string)
	for _, label := range family.GetMetric()[0].GetLabel() {
		labels[label.GetName()] = label.GetValue()
	}
	if labels["method"] != "GET" || labels["path"] != "/v1/actions" || labels["status"] != "404" {
		t.Errorf("labels = %v", labels)
	}
}

func TestHTTPMetricsMiddlewareNilMetrics(t *testing.T) {
	// Must not panic with observability disabled.
	handler := HTTPMetricsMiddleware(nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHealthCheckerLiveness(t *testing.T) {
	h := NewHealthChecker(testLogger())
	status := h.CheckHealth()
	if status.Status != "ok" {
		t.Errorf("liveness status = %q, want ok", status.Status)
	}
}

func TestHealthCheckerReadyNoChecks(t *testing.T) {
	h := NewHealthChecker(testLogger())
	status := h.CheckReady(context.Background())
	if status.Status != "ok" {
		t.Errorf("readiness with no checks = %q, want ok", status.Status)
	}
}

func TestHealthCheckerReadyAggregates(t *testing.T) {
	h := NewHealthChecker(testLogger())
	h.AddCheck("storage", func(ctx context.Context) error { return nil })
	h.AddCheck("broker", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	status := h.CheckReady(context.Background())
	if status.Status != "degraded" {
		t.Fatalf("readiness status = %q, want degraded", status.Status)
	}
	if status.Checks["storage"].Status != "ok" {
		t.Errorf("storage check = %+v, want ok", status.Checks["storage"])
	}
	failed := status.Checks["broker"]
	if failed.Status != "fail" {
		t.Errorf("broker check status = %q, want fail", failed.Status)
	}
	if failed.Message != "connection refused" {
		t.Errorf("broker check message = %q", failed.Message)
	}
}
