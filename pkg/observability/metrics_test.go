package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}
		if metrics.HTTPRequestsTotal == nil {
			t.Error("HTTPRequestsTotal is nil")
		}
		if metrics.AccessDecisionsTotal == nil {
			t.Error("AccessDecisionsTotal is nil")
		}
		if metrics.SecretOperationsTotal == nil {
			t.Error("SecretOperationsTotal is nil")
		}
		if metrics.SessionOperationsTotal == nil {
			t.Error("SessionOperationsTotal is nil")
		}
		if metrics.AuditEventsTotal == nil {
			t.Error("AuditEventsTotal is nil")
		}
		if metrics.ResolverCacheHits == nil {
			t.Error("ResolverCacheHits is nil")
		}
		if metrics.DBConnectionsActive == nil {
			t.Error("DBConnectionsActive is nil")
		}

		// Touch a few metrics and verify gathering works
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/folders", "200").Add(0)
		metrics.AccessDecisionsTotal.WithLabelValues("allowed", "explicit_grant").Add(0)
		metrics.SecretOperationsTotal.WithLabelValues("decrypt", "success").Add(0)
		metrics.ActiveSessionsTotal.Set(0)

		families, err := registry.Gather()
		if err != nil {
			t.Fatalf("Failed to gather metrics: %v", err)
		}
		if len(families) == 0 {
			t.Error("No metric families gathered")
		}
	})

	t.Run("panics on duplicate registration", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic on duplicate registration, but didn't panic")
			}
		}()

		NewMetrics(registry)
	})
}

func TestMetrics_AccessDecisions(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AccessDecisionsTotal.WithLabelValues("allowed", "admin_override").Inc()
	metrics.AccessDecisionsTotal.WithLabelValues("allowed", "owner_rule").Inc()
	metrics.AccessDecisionsTotal.WithLabelValues("denied", "none").Inc()

	expected := `
# HELP lockbox_access_decisions_total Total number of folder access decisions
# TYPE lockbox_access_decisions_total counter
lockbox_access_decisions_total{decision="allowed",source="admin_override"} 1
lockbox_access_decisions_total{decision="allowed",source="owner_rule"} 1
lockbox_access_decisions_total{decision="denied",source="none"} 1
`
	if err := testutil.CollectAndCompare(metrics.AccessDecisionsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestMetrics_SecretOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.SecretOperationsTotal.WithLabelValues("encrypt", "success").Inc()
	metrics.SecretOperationsTotal.WithLabelValues("decrypt", "error").Inc()
	metrics.SecretOperationDuration.WithLabelValues("decrypt").Observe(0.002)

	expected := `
# HELP lockbox_secret_operations_total Total number of secret operations
# TYPE lockbox_secret_operations_total counter
lockbox_secret_operations_total{operation="decrypt",status="error"} 1
lockbox_secret_operations_total{operation="encrypt",status="success"} 1
`
	if err := testutil.CollectAndCompare(metrics.SecretOperationsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}

	if count := testutil.CollectAndCount(metrics.SecretOperationDuration); count != 1 {
		t.Errorf("Expected 1 metric family, got %d", count)
	}
}

func TestMetrics_ResolverCache(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ResolverCacheHits.Inc()
	metrics.ResolverCacheHits.Inc()
	metrics.ResolverCacheMisses.Inc()

	if v := testutil.ToFloat64(metrics.ResolverCacheHits); v != 2 {
		t.Errorf("Expected 2 cache hits, got %v", v)
	}
	if v := testutil.ToFloat64(metrics.ResolverCacheMisses); v != 1 {
		t.Errorf("Expected 1 cache miss, got %v", v)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))

	req := httptest.NewRequest("POST", "/api/v1/secrets", strings.NewReader("payload"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	expected := `
# HELP lockbox_http_requests_total Total number of HTTP requests
# TYPE lockbox_http_requests_total counter
lockbox_http_requests_total{method="POST",path="/api/v1/secrets",status="201"} 1
`
	if err := testutil.CollectAndCompare(metrics.HTTPRequestsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}

	if count := testutil.CollectAndCount(metrics.HTTPRequestDuration); count != 1 {
		t.Errorf("Expected duration to be observed, got %d families", count)
	}
	if count := testutil.CollectAndCount(metrics.HTTPRequestSize); count != 1 {
		t.Errorf("Expected request size to be observed, got %d families", count)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.AuditEventsTotal.WithLabelValues("secret.read", "success").Inc()

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "lockbox_audit_events_total") {
		t.Error("Metrics endpoint does not expose audit event counter")
	}
}
