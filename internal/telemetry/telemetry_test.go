package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestSetupWithoutEndpoint tests that telemetry stays off without an endpoint.
func TestSetupWithoutEndpoint(t *testing.T) {
	t.Parallel()

	_, err := Setup(context.Background(), "phoneprobe", "test", Config{})
	if !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("expected ErrNoEndpoint, got %v", err)
	}
}

// TestSignalURL tests the per-signal export paths.
func TestSignalURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		endpoint string
		signal   string
		expected string
	}{
		{"http://localhost:4318", "traces", "http://localhost:4318/v1/traces"},
		{"http://localhost:4318/", "metrics", "http://localhost:4318/v1/metrics"},
		{"https://otel.example.com/collector", "traces", "https://otel.example.com/collector/v1/traces"},
	}
	for _, tc := range testCases {
		if got := signalURL(tc.endpoint, tc.signal); got != tc.expected {
			t.Errorf("signalURL(%q, %q): expected %q, got %q", tc.endpoint, tc.signal, tc.expected, got)
		}
	}
}

// TestInstrumentResty tests that each request produces one client span.
func TestInstrumentResty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Traceparent") != "" {
			t.Error("expected trace context not to be propagated")
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	client := resty.New()
	InstrumentResty(client, tp)

	if _, err := client.R().Get(server.URL + "/ok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.R().Get(server.URL + "/missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "HTTP GET" {
		t.Errorf("expected span name 'HTTP GET', got %q", spans[0].Name())
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("expected first span without error status")
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("expected error status for 404, got %v", spans[1].Status())
	}
}
