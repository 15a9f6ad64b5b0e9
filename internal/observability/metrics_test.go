package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("middleware altered status: %d", rec.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `meridian_http_requests_total{code="418",route="unknown"} 1`) {
		t.Fatalf("request counter missing:\n%s", body)
	}
}

func TestObserveDecision(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveDecision(true, "")
	metrics.ObserveDecision(false, "INSUFFICIENT_PRIVILEGE")
	metrics.ObserveDecision(false, "INSUFFICIENT_PRIVILEGE")

	body := scrape(t, metrics)
	if !strings.Contains(body, `meridian_authz_decisions_total{outcome="allow",reason=""} 1`) {
		t.Fatalf("allow counter missing:\n%s", body)
	}
	if !strings.Contains(body, `meridian_authz_decisions_total{outcome="deny",reason="INSUFFICIENT_PRIVILEGE"} 2`) {
		t.Fatalf("deny counter missing:\n%s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveDecision(false, "NO_ROLE_IN_COMPANY")
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil metrics handler returned %d", rec.Code)
	}
}

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}
