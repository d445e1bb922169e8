package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/server/middleware"
	"mercator-hq/warden/pkg/telemetry/tracing"
	"mercator-hq/warden/pkg/warden"
	"mercator-hq/warden/pkg/warden/filter"
	"mercator-hq/warden/pkg/warden/types"

	"go.opentelemetry.io/otel/trace/noop"
)

type suspendingEnforcer struct {
	calls     int
	suspended string
}

func (e *suspendingEnforcer) ModifyMetric(p *types.Policy, user string, _ float64) error {
	e.calls++
	if user == e.suspended {
		return &warden.SuspendedError{
			Policy:    *p,
			User:      user,
			ExpiresAt: types.IndefiniteExpiration,
			Value:     120,
		}
	}
	return nil
}

func proxyConfig(upstream string) *config.ProxyConfig {
	return &config.ProxyConfig{
		ListenAddress:   "127.0.0.1:0",
		Upstream:        upstream,
		UserHeader:      "X-Warden-User",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     5 * time.Second,
		ShutdownTimeout: time.Second,
		MaxHeaderBytes:  1 << 20,
	}
}

func newServer(t *testing.T, upstream string, enforcer filter.Enforcer) *Server {
	t.Helper()
	policy := types.Policy{Service: "shop", Name: "orders", Users: []string{"alice", "mallory"}}.WithID(3)
	route, err := filter.NewRoute("/orders(/.*)?", "POST", policy)
	if err != nil {
		t.Fatalf("NewRoute() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(proxyConfig(upstream), Options{
		Filter: filter.New(enforcer, []filter.Route{route}, filter.WithLogger(logger)),
		Tracer: tracing.NewWithProvider(noop.NewTracerProvider()),
		Logger: logger,
		Mount: func(mux *http.ServeMux) {
			mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func TestProxyEnforcesSuspensions(t *testing.T) {
	var upstreamCalls int
	var forwardedID string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls++
		forwardedID = r.Header.Get(middleware.RequestIDHeader)
		_, _ = io.WriteString(w, "created")
	}))
	defer upstream.Close()

	enforcer := &suspendingEnforcer{suspended: "mallory"}
	h := newServer(t, upstream.URL, enforcer).Handler()

	req := httptest.NewRequest(http.MethodPost, "/orders/1", bytes.NewBufferString("{}"))
	req.Header.Set("X-Warden-User", "alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "created" {
		t.Fatalf("alice: status = %d body = %q", rec.Code, rec.Body.String())
	}
	if forwardedID == "" || forwardedID != rec.Header().Get(middleware.RequestIDHeader) {
		t.Errorf("upstream request id = %q, response = %q", forwardedID, rec.Header().Get(middleware.RequestIDHeader))
	}

	req = httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("X-Warden-User", "mallory")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("mallory: status = %d, want 401", rec.Code)
	}
	if upstreamCalls != 1 {
		t.Errorf("upstream calls = %d, want 1", upstreamCalls)
	}
	if enforcer.calls != 2 {
		t.Errorf("enforcer calls = %d, want 2", enforcer.calls)
	}
}

func TestMountedEndpointsBypassFilter(t *testing.T) {
	enforcer := &suspendingEnforcer{suspended: "mallory"}
	h := newServer(t, "http://127.0.0.1:1", enforcer).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Warden-User", "mallory")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if enforcer.calls != 0 {
		t.Errorf("enforcer calls = %d, want 0", enforcer.calls)
	}
}

func TestUpstreamFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	dead := "http://" + ln.Addr().String()
	ln.Close()

	h := newServer(t, dead, &suspendingEnforcer{}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body middleware.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "upstream unavailable" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(proxyConfig("http://localhost"), Options{}); err == nil {
		t.Error("New() without filter succeeded")
	}
	f := filter.New(&suspendingEnforcer{}, nil)
	if _, err := New(proxyConfig("localhost:8080"), Options{Filter: f}); err == nil {
		t.Error("New() with relative upstream succeeded")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	srv := newServer(t, upstream.URL, &suspendingEnforcer{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("GET through proxy: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if srv.Addr() == nil {
		t.Error("Addr() = nil while serving")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
