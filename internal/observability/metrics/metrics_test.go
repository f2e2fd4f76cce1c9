package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePathCollapsesIDs(t *testing.T) {
	got := normalizePath("/v1/uploads/0b7c2a8e-4a55-4c1e-9d8e-0f6a3c1b2d4e/error-library")
	if got != "/v1/uploads/{id}/error-library" {
		t.Fatalf("unexpected path %q", got)
	}
	if normalizePath("/v1/recognize") != "/v1/recognize" {
		t.Fatalf("static path must be unchanged")
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("svc")
	h := m.Middleware("svc", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/uploads", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("svc", http.MethodGet, "/v1/uploads", "418")); got != 1 {
		t.Fatalf("expected one recorded request, got %v", got)
	}

	body := httptest.NewRecorder()
	m.Handler().ServeHTTP(body, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(body.Body.String(), "gapdrill_http_requests_total") {
		t.Fatalf("expected exported metric family")
	}
}

func TestWorkflowMetricsObserveOutcomes(t *testing.T) {
	http := NewHTTPServerMetrics("svc")
	wf := NewWorkflowMetrics("svc", http.Registry())

	wf.RecognitionFinished(context.Background(), "id", "cached")
	wf.CompensationAttempted(context.Background(), "ref", errors.New("insert"), errors.New("delete"))
	wf.CompensationAttempted(context.Background(), "ref", errors.New("insert"), nil)
	wf.RecordRetry("vision.recognize", 1, errors.New("503"))

	if got := testutil.ToFloat64(wf.recognitionTotal.WithLabelValues("svc", "cached")); got != 1 {
		t.Fatalf("unexpected cached count %v", got)
	}
	if got := testutil.ToFloat64(wf.compensationTotal.WithLabelValues("svc", "failed")); got != 1 {
		t.Fatalf("unexpected failed compensation count %v", got)
	}
	if got := testutil.ToFloat64(wf.retryTotal.WithLabelValues("svc", "vision.recognize")); got != 1 {
		t.Fatalf("unexpected retry count %v", got)
	}
}
