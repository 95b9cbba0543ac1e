package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// harness routes a small mux through Middleware with in-memory metric and
// span sinks. It swaps the global tracer provider and default logger, so
// tests using it do not run in parallel.
type harness struct {
	handler http.Handler
	reader  *sdkmetric.ManualReader
	spans   *tracetest.InMemoryExporter
	logs    *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	logs := &bytes.Buffer{}
	origLog := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(origLog) })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		Logger(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /v1/scenarios/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {})

	return &harness{handler: Middleware(m)(mux), reader: reader, spans: spans, logs: logs}
}

func (h *harness) get(t *testing.T, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_SessionRequest(t *testing.T) {
	h := newHarness(t)

	rec := h.get(t, "/v1/sessions/0192f3a4", nil)
	cid := rec.Header().Get(CorrelationHeader)
	if len(cid) != 32 {
		t.Fatalf("%s = %q, want a 32 character trace ID", CorrelationHeader, cid)
	}
	if rec.Header().Get("traceparent") == "" {
		t.Error("trace context not injected into the response")
	}

	spans := h.spans.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /v1/sessions/{id}" {
		t.Errorf("span name = %q, want the route pattern", spans[0].Name)
	}
	var gotSession, gotStatus bool
	for _, a := range spans[0].Attributes {
		switch string(a.Key) {
		case "lingoxa.session_id":
			gotSession = a.Value.AsString() == "0192f3a4"
		case "http.response.status_code":
			gotStatus = a.Value.AsInt64() == http.StatusOK
		}
	}
	if !gotSession || !gotStatus {
		t.Errorf("span attributes = %v", spans[0].Attributes)
	}

	logs := h.logs.String()
	for _, want := range []string{"inside handler", "trace_id=" + cid, "span_id=", "session_id=0192f3a4", "status=200"} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %q:\n%s", want, logs)
		}
	}
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	h := newHarness(t)

	h.get(t, "/v1/scenarios/cafe-order", nil)
	h.get(t, "/v1/scenarios/job-interview", nil)

	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "lingoxa.http.request.duration")
	if met == nil {
		t.Fatal("lingoxa.http.request.duration not recorded")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want one series for both scenario IDs", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 2 {
		t.Errorf("count = %d, want 2", dp.Count)
	}
	if v, _ := dp.Attributes.Value("path"); v.AsString() != "GET /v1/scenarios/{id}" {
		t.Errorf("path = %q", v.AsString())
	}
	if strings.Contains(h.logs.String(), "session_id") {
		t.Error("scenario request logged a session_id")
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	h := newHarness(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	rec := h.get(t, "/v1/sessions/x", http.Header{
		"Traceparent": {"00-" + traceID + "-00f067aa0ba902b7-01"},
	})
	if got := rec.Header().Get(CorrelationHeader); got != traceID {
		t.Errorf("%s = %q, want %q", CorrelationHeader, got, traceID)
	}
}

func TestMiddleware_ProbesLogQuietly(t *testing.T) {
	h := newHarness(t)

	h.get(t, "/healthz", nil)
	if h.logs.Len() != 0 {
		t.Errorf("probe logged at info: %s", h.logs.String())
	}
	if len(h.spans.GetSpans()) != 1 {
		t.Error("probe not traced")
	}
}

func TestMiddleware_UnroutedPath(t *testing.T) {
	h := newHarness(t)

	rec := h.get(t, "/nowhere", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	spans := h.spans.GetSpans()
	if len(spans) != 1 || spans[0].Name != "HTTP GET /nowhere" {
		t.Errorf("spans = %v", spans)
	}
}

func TestStatusRecorder_Unwrap(t *testing.T) {
	t.Parallel()

	inner := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: inner}
	if rec.Unwrap() != inner {
		t.Error("Unwrap did not return the wrapped writer")
	}
	if err := http.NewResponseController(rec).Flush(); err != nil {
		t.Errorf("Flush through recorder: %v", err)
	}
}
