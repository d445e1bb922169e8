package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/warden/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{
			name:   "disabled",
			config: &config.TracingConfig{Enabled: false, ServiceName: "test"},
		},
		{
			name: "enabled with ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerRatio,
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "test",
				OTLP:        config.OTLPConfig{Insecure: true, Timeout: time.Second},
			},
			wantEnabled: true,
		},
		{
			name: "unknown sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = tracer.Shutdown(ctx)
			}()

			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}
			if tracer.TracerProvider() == nil {
				t.Error("TracerProvider() = nil")
			}
		})
	}
}

func TestDisabledTracerCreatesNonRecordingSpans(t *testing.T) {
	tracer, err := New(&config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "op")
	defer span.End()

	if span.IsRecording() {
		t.Error("span is recording with tracing disabled")
	}
	if id := TraceID(ctx); id != "" {
		t.Errorf("TraceID() = %q, want empty", id)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, 1.5, true},
		{SamplerRatio, -0.1, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		s, err := createSampler(tt.strategy, tt.ratio)
		if (err != nil) != tt.wantErr {
			t.Errorf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
			continue
		}
		if err == nil && s == nil {
			t.Errorf("createSampler(%q) returned nil sampler", tt.strategy)
		}
	}
}

func recordingTracer() (*Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewWithProvider(provider), recorder
}

func TestSetStatus(t *testing.T) {
	tracer, recorder := recordingTracer()

	_, span := tracer.Start(context.Background(), "failing")
	SetStatus(span, errors.New("boom"))
	span.End()

	_, span = tracer.Start(context.Background(), "ok")
	SetStatus(span, nil)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("failing span status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("failing span has no recorded error event")
	}
	if spans[1].Status().Code != codes.Ok {
		t.Errorf("ok span status = %v, want Ok", spans[1].Status().Code)
	}
}

func TestMiddlewareContinuesIncomingTrace(t *testing.T) {
	tracer, recorder := recordingTracer()

	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	var upstreamHeader string
	var handlerTraceID string

	handler := tracer.Middleware("X-Warden-User")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHeader = r.Header.Get("traceparent")
		handlerTraceID = TraceID(r.Context())
		w.WriteHeader(http.StatusBadGateway)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("traceparent", parent)
	req.Header.Set("X-Warden-User", "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if handlerTraceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("handler trace id = %q, want the propagated id", handlerTraceID)
	}
	if upstreamHeader == parent || upstreamHeader == "" {
		t.Errorf("upstream traceparent = %q, want the proxy span as parent", upstreamHeader)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v, want server", span.SpanKind())
	}
	if span.Name() != "GET /api/items" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error for a 5xx response", span.Status().Code)
	}

	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[string(AttrUser)] != "alice" {
		t.Errorf("user attribute = %q, want alice", attrs[string(AttrUser)])
	}
	if attrs[string(AttrHTTPStatus)] != "502" {
		t.Errorf("status attribute = %q, want 502", attrs[string(AttrHTTPStatus)])
	}
}
