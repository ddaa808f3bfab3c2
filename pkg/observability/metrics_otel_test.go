package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider creates a test meter provider with a manual reader
func setupTestMeterProvider(t *testing.T) (*metric.MeterProvider, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	})
	return provider, reader
}

// collectedMetricNames gathers the names of all recorded instruments
func collectedMetricNames(t *testing.T, reader *metric.ManualReader) map[string]bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestNewOTelMetrics(t *testing.T) {
	setupTestMeterProvider(t)

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v, want nil", err)
	}
	if m == nil {
		t.Fatal("NewOTelMetrics() returned nil metrics")
	}

	if m.httpRequestsTotal == nil {
		t.Error("httpRequestsTotal is nil")
	}
	if m.httpRequestDuration == nil {
		t.Error("httpRequestDuration is nil")
	}
	if m.dbQueriesTotal == nil {
		t.Error("dbQueriesTotal is nil")
	}
	if m.accessDecisionsTotal == nil {
		t.Error("accessDecisionsTotal is nil")
	}
	if m.grantMutationsTotal == nil {
		t.Error("grantMutationsTotal is nil")
	}
	if m.secretOperationsTotal == nil {
		t.Error("secretOperationsTotal is nil")
	}
	if m.secretOperationDuration == nil {
		t.Error("secretOperationDuration is nil")
	}
}

func TestOTelMetrics_RecordHTTPRequest(t *testing.T) {
	_, reader := setupTestMeterProvider(t)
	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "GET", "/api/v1/folders", 200, 100*time.Millisecond, 0, 1024)
	m.RecordHTTPRequest(ctx, "POST", "/api/v1/secrets", 201, 250*time.Millisecond, 512, 256)

	names := collectedMetricNames(t, reader)
	if !names["http.server.requests"] {
		t.Error("HTTP requests counter not recorded")
	}
	if !names["http.server.duration"] {
		t.Error("HTTP request duration not recorded")
	}
	if !names["http.server.response.size"] {
		t.Error("HTTP response size not recorded")
	}
}

func TestOTelMetrics_RecordDBQuery(t *testing.T) {
	_, reader := setupTestMeterProvider(t)
	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordDBQuery(ctx, "select", 5*time.Millisecond, nil)
	m.RecordDBQuery(ctx, "insert", 8*time.Millisecond, errors.New("duplicate key"))

	names := collectedMetricNames(t, reader)
	if !names["db.queries.total"] {
		t.Error("DB queries counter not recorded")
	}
	if !names["db.query.duration"] {
		t.Error("DB query duration not recorded")
	}
}

func TestOTelMetrics_RecordAccessDecision(t *testing.T) {
	_, reader := setupTestMeterProvider(t)
	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordAccessDecision(ctx, "allowed", "owner_rule")
	m.RecordAccessDecision(ctx, "denied", "none")
	m.RecordGrantMutation(ctx, "create")

	names := collectedMetricNames(t, reader)
	if !names["authz.decisions.total"] {
		t.Error("Access decisions counter not recorded")
	}
	if !names["authz.grant.mutations.total"] {
		t.Error("Grant mutations counter not recorded")
	}
}

func TestOTelMetrics_RecordSecretOperation(t *testing.T) {
	_, reader := setupTestMeterProvider(t)
	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordSecretOperation(ctx, "encrypt", 2*time.Millisecond, nil)
	m.RecordSecretOperation(ctx, "decrypt", 3*time.Millisecond, errors.New("cipher: message authentication failed"))

	names := collectedMetricNames(t, reader)
	if !names["secrets.operations.total"] {
		t.Error("Secret operations counter not recorded")
	}
	if !names["secrets.operation.duration"] {
		t.Error("Secret operation duration not recorded")
	}
}
