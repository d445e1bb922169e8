package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/warden/internal/wardentest"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/warden/types"
)

const policyYAML = `policies:
  - service: shop
    name: orders
    users: [alice, mallory]
    trigger_type: greater_than
    aggregator: sum
    thresholds: [100]
    time_unit: 1min
    routes:
      - url: /orders(/.*)?
        method: POST
  - service: shop
    name: searches
    users: [alice]
    trigger_type: GREATER_THAN
    aggregator: SUM
    thresholds: [1000, 5000]
    routes:
      - url: /search
`

func init() {
	logOutput = io.Discard
}

// writeConfig writes a config and policy file to a temp dir and returns the
// config path.
func writeConfig(t *testing.T, endpoint, extra string) string {
	t.Helper()
	dir := t.TempDir()
	policies := filepath.Join(dir, "policies.yaml")
	if err := os.WriteFile(policies, []byte(policyYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := fmt.Sprintf(`warden:
  endpoint: %s
  username: svc
  password: secret
  max_retries: -1
policies:
  file: %s
%s`, endpoint, policies, extra)

	path := filepath.Join(dir, "warden.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(context.Background(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "Warden "+Version) || !strings.Contains(out, "Go Version:") {
		t.Errorf("output = %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, "http://warden.test", "")

	out, err := execute(context.Background(), "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "2 policies, 2 routes") {
		t.Errorf("output = %q", out)
	}
}

func TestValidateCommandReportsConfigErrors(t *testing.T) {
	path := writeConfig(t, "not-a-url", "")

	_, err := execute(context.Background(), "validate", "--config", path)
	if err == nil {
		t.Fatal("validate accepted an invalid endpoint")
	}
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("exit code = %d, want %d", cli.ExitCode(err), cli.ExitConfig)
	}
}

func TestPolicyListCommand(t *testing.T) {
	path := writeConfig(t, "http://warden.test", "")

	out, err := execute(context.Background(), "policy", "list", "--config", path, "--output", "json")
	if err != nil {
		t.Fatalf("policy list: %v", err)
	}
	var rows []map[string]string
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["name"] != "orders" || rows[0]["routes"] != "POST /orders(/.*)?" {
		t.Errorf("first row = %v", rows[0])
	}
	if rows[1]["thresholds"] != "1000,5000" || rows[1]["routes"] != "* /search" {
		t.Errorf("second row = %v", rows[1])
	}
}

func TestPolicySyncCommand(t *testing.T) {
	auth := wardentest.NewAuthority("svc", "secret")
	defer auth.Close()
	path := writeConfig(t, auth.URL(), "")

	out, err := execute(context.Background(), "policy", "sync", "--config", path, "--output", "text")
	if err != nil {
		t.Fatalf("policy sync: %v", err)
	}
	if len(auth.Policies()) != 2 {
		t.Errorf("authority holds %d policies, want 2", len(auth.Policies()))
	}
	if !strings.Contains(out, "orders") || !strings.Contains(out, "searches") {
		t.Errorf("output = %q", out)
	}
	if auth.Count("GET /auth/logout") != 1 {
		t.Error("policy sync did not log out")
	}
}

func TestUserSuspensionsCommand(t *testing.T) {
	auth := wardentest.NewAuthority("svc", "secret")
	defer auth.Close()
	id := auth.SeedPolicy(types.Policy{
		Service: "shop", Name: "orders",
		TriggerType: types.TriggerGreaterThan, Aggregator: types.AggregatorSum,
		Thresholds: []float64{100},
	})
	indefinite := types.IndefiniteExpiration
	auth.SetSuspensions(id, types.Infraction{
		PolicyID:            id,
		Username:            "mallory",
		InfractionTimestamp: time.Now().Add(-time.Hour).UnixMilli(),
		ExpirationTimestamp: &indefinite,
		Value:               1500,
	})
	path := writeConfig(t, auth.URL(), "")

	out, err := execute(context.Background(), "user", "suspensions", "mallory", "--config", path, "--output", "json")
	if err != nil {
		t.Fatalf("user suspensions: %v", err)
	}
	var rows []map[string]string
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	want := map[string]string{
		"policy":   "shop/orders",
		"user":     "mallory",
		"value":    "1500",
		"recorded": "1 hour ago",
		"expires":  "never",
	}
	for k, v := range want {
		if rows[0][k] != v {
			t.Errorf("%s = %q, want %q", k, rows[0][k], v)
		}
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().String()
}

func TestRunEnforcesSuspensions(t *testing.T) {
	auth := wardentest.NewAuthority("svc", "secret")
	defer auth.Close()

	id := auth.SeedPolicy(types.Policy{
		Service: "shop", Name: "orders",
		Users:       []string{"alice", "mallory"},
		TriggerType: types.TriggerGreaterThan, Aggregator: types.AggregatorSum,
		Thresholds: []float64{100}, TimeUnit: "1min",
	})
	indefinite := types.IndefiniteExpiration
	auth.SetSuspensions(id, types.Infraction{PolicyID: id, Username: "mallory", ExpirationTimestamp: &indefinite, Value: 150})

	var upstreamCalls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		upstreamCalls.Add(1)
		_, _ = io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	addr := freeAddr(t)
	path := writeConfig(t, auth.URL(), fmt.Sprintf(`proxy:
  listen_address: %s
  upstream: %s
  shutdown_timeout: 2s
telemetry:
  metrics:
    enabled: true
`, addr, upstream.URL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := execute(ctx, "run", "--config", path)
		done <- err
	}()

	base := "http://" + addr
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("proxy did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	post := func(user string) int {
		req, _ := http.NewRequest(http.MethodPost, base+"/orders/42", strings.NewReader("{}"))
		req.Header.Set("X-Warden-User", user)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST as %s: %v", user, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post("alice"); code != http.StatusOK {
		t.Errorf("alice: status = %d, want 200", code)
	}
	if code := post("mallory"); code != http.StatusUnauthorized {
		t.Errorf("mallory: status = %d, want 401", code)
	}
	if n := upstreamCalls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "warden_client_suspensions_enforced_total") {
		t.Error("metrics do not report enforced suspensions")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	if auth.Count("GET /auth/logout") != 1 {
		t.Error("run did not unregister")
	}
}
