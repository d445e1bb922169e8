package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"
)

func TestReadinessAggregatesChecks(t *testing.T) {
	c := New(time.Second)
	c.RegisterChecks(map[string]func(context.Context) error{
		"warden_registration": func(context.Context) error { return nil },
		"warden_sync":         func(context.Context) error { return nil },
	})

	status := c.Readiness(context.Background())
	if status.Status != StatusReady {
		t.Fatalf("status = %q, want ready", status.Status)
	}
	if len(status.Checks) != 2 {
		t.Fatalf("checks = %d, want 2", len(status.Checks))
	}

	c.RegisterCheck("warden_sync", func(context.Context) error {
		return errors.New("push-usage: authority unavailable")
	})
	status = c.Readiness(context.Background())
	if status.Status != StatusDegraded {
		t.Fatalf("status = %q, want degraded", status.Status)
	}
	got := status.Checks["warden_sync"]
	if got.Status != StatusUnhealthy || got.Message != "push-usage: authority unavailable" {
		t.Errorf("warden_sync = %+v", got)
	}

	c.UnregisterCheck("warden_sync")
	if status := c.Readiness(context.Background()); !status.Ready() {
		t.Errorf("status after unregister = %q, want ready", status.Status)
	}
}

func TestReadinessNoChecks(t *testing.T) {
	status := New(0).Readiness(context.Background())
	if !status.Ready() {
		t.Errorf("status = %q, want ready", status.Status)
	}
}

func TestCheckTimeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	c.RegisterCheck("slow", func(context.Context) error {
		<-release
		return nil
	})

	status := c.Readiness(context.Background())
	got := status.Checks["slow"]
	if got.Status != StatusUnhealthy || got.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v, want timeout", got)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("warden_registration", func(context.Context) error {
		return errors.New("client is unregistered")
	})

	mux := http.NewServeMux()
	c.Mount(mux, config.HealthConfig{
		LivenessPath:  "/health",
		ReadinessPath: "/ready",
		VersionPath:   "/version",
	}, BuildInfo{Version: "1.2.3", Commit: "abc"})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodHead, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusServiceUnavailable},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
		if tt.method == http.MethodHead && rec.Body.Len() != 0 {
			t.Errorf("HEAD %s wrote a body", tt.path)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info BuildInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if info.Version != "1.2.3" || info.GoVersion == "" {
		t.Errorf("version info = %+v", info)
	}
}
