package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/warden/internal/wardentest"
	"mercator-hq/warden/pkg/warden/types"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := New(Config{
		Endpoint:       endpoint,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func loggedIn(t *testing.T) (*Client, *wardentest.Authority) {
	t.Helper()
	auth := wardentest.NewAuthority("svc", "secret")
	t.Cleanup(auth.Close)

	c := newTestClient(t, auth.URL())
	if err := c.Login(context.Background(), "svc", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return c, auth
}

func policy(name string) types.Policy {
	return types.Policy{
		Service:     "billing",
		Name:        name,
		Users:       []string{"alice"},
		TriggerType: types.TriggerGreaterThan,
		Aggregator:  types.AggregatorSum,
		Thresholds:  []float64{10},
		TimeUnit:    "5min",
		CronEntry:   "* * * * *",
	}
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "ftp://warden", "://nope"} {
		if _, err := New(Config{Endpoint: endpoint}); err == nil {
			t.Errorf("New(%q) expected error", endpoint)
		}
	}
}

func TestLoginRequiredForSession(t *testing.T) {
	auth := wardentest.NewAuthority("svc", "secret")
	defer auth.Close()
	c := newTestClient(t, auth.URL())

	_, err := c.GetPolicy(context.Background(), "billing", "calls")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized before login, got %v", err)
	}

	if err := c.Login(context.Background(), "svc", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bad password, got %v", err)
	}
}

func TestPolicyLifecycle(t *testing.T) {
	c, auth := loggedIn(t)
	ctx := context.Background()

	missing, err := c.GetPolicy(ctx, "billing", "calls")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no policy, got %v", missing)
	}

	created, err := c.CreatePolicy(ctx, policy("calls"))
	if err != nil {
		t.Fatalf("CreatePolicy failed: %v", err)
	}
	id, ok := created.PolicyID()
	if !ok {
		t.Fatal("created policy has no id")
	}

	found, err := c.GetPolicy(ctx, "billing", "calls")
	if err != nil || found == nil {
		t.Fatalf("GetPolicy after create = %v, %v", found, err)
	}
	if *found.ID != id {
		t.Errorf("found id %d, want %d", *found.ID, id)
	}

	changed := policy("calls").WithID(id)
	changed.Thresholds = []float64{20}
	if _, err := c.UpdatePolicy(ctx, id, changed); err != nil {
		t.Fatalf("UpdatePolicy failed: %v", err)
	}
	if got := auth.Policies()[id].Thresholds; len(got) != 1 || got[0] != 20 {
		t.Errorf("stored thresholds = %v", got)
	}
}

func TestUpdatePolicyIDMismatch(t *testing.T) {
	c, auth := loggedIn(t)

	_, err := c.UpdatePolicy(context.Background(), 5, policy("calls").WithID(6))
	if !errors.Is(err, ErrIDMismatch) {
		t.Fatalf("expected ErrIDMismatch, got %v", err)
	}
	if n := auth.Count("PUT /policy/5"); n != 0 {
		t.Errorf("mismatched update reached the server %d times", n)
	}
}

func TestGetSuspensions(t *testing.T) {
	c, auth := loggedIn(t)
	auth.SetSuspensions(7,
		types.Infraction{PolicyID: 7, Username: "alice", ExpirationTimestamp: types.Int64(types.IndefiniteExpiration)},
		types.Infraction{PolicyID: 7, Username: "bob", ExpirationTimestamp: types.Int64(1234)},
	)

	got, err := c.GetSuspensions(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetSuspensions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d suspensions, want 2", len(got))
	}
	if !got[0].IsIndefinite() {
		t.Errorf("first suspension should be indefinite: %v", got[0])
	}
}

func TestPushUsagePayload(t *testing.T) {
	c, auth := loggedIn(t)

	if err := c.PushUsage(context.Background(), 9, "alice", map[int64]float64{1_700_000_040_000: 3}); err != nil {
		t.Fatalf("PushUsage failed: %v", err)
	}

	pushes := auth.Pushes()
	if len(pushes) != 1 {
		t.Fatalf("got %d pushes, want 1", len(pushes))
	}
	p := pushes[0]
	if p.PolicyID != 9 || p.User != "alice" || p.Samples[1_700_000_040_000] != 3 {
		t.Errorf("push = %+v", p)
	}
}

func TestUserNamesAreEscapedInPaths(t *testing.T) {
	c, auth := loggedIn(t)
	ctx := context.Background()

	indefinite := types.IndefiniteExpiration
	auth.SetSuspensions(9, types.Infraction{PolicyID: 9, Username: "dept/alice", ExpirationTimestamp: &indefinite})

	for i, user := range []string{"dept/alice", "50%off", "a b"} {
		if err := c.PushUsage(ctx, 9, user, map[int64]float64{60_000: 1}); err != nil {
			t.Fatalf("PushUsage(%q) failed: %v", user, err)
		}
		pushes := auth.Pushes()
		if len(pushes) != i+1 {
			t.Fatalf("PushUsage(%q): got %d pushes, want %d", user, len(pushes), i+1)
		}
		if got := pushes[i]; got.PolicyID != 9 || got.User != user {
			t.Errorf("PushUsage(%q) reached policy %d user %q", user, got.PolicyID, got.User)
		}
	}

	got, err := c.GetUserSuspensions(ctx, "dept/alice")
	if err != nil {
		t.Fatalf("GetUserSuspensions failed: %v", err)
	}
	if len(got) != 1 || got[0].Username != "dept/alice" {
		t.Errorf("suspensions = %+v", got)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	c, auth := loggedIn(t)
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, "10.0.0.5", 9000)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.ID == nil || sub.Port != 9000 {
		t.Fatalf("subscription = %+v", sub)
	}
	if len(auth.Subscriptions()) != 1 {
		t.Fatalf("server has %d subscriptions", len(auth.Subscriptions()))
	}

	if err := c.Unsubscribe(ctx, *sub.ID); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if len(auth.Subscriptions()) != 0 {
		t.Errorf("subscription not removed")
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	c, auth := loggedIn(t)
	auth.FailNext("GET /policy/3/suspension", http.StatusServiceUnavailable, 2)

	if _, err := c.GetSuspensions(context.Background(), 3); err != nil {
		t.Fatalf("GetSuspensions should succeed after retries: %v", err)
	}
	if n := auth.Count("GET /policy/3/suspension"); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	c, auth := loggedIn(t)
	auth.FailNext("GET /policy/3/suspension", http.StatusBadRequest, 5)

	_, err := c.GetSuspensions(context.Background(), 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Error(), "injected failure") {
		t.Errorf("error message lost: %v", apiErr)
	}
	if n := auth.Count("GET /policy/3/suspension"); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	c, auth := loggedIn(t)
	auth.FailNext("GET /policy/3/suspension", http.StatusBadGateway, 10)

	if _, err := c.GetSuspensions(context.Background(), 3); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if n := auth.Count("GET /policy/3/suspension"); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestCreatesAreNotReplayedAfterServerErrors(t *testing.T) {
	c, auth := loggedIn(t)
	ctx := context.Background()

	auth.FailNext("POST /policy", http.StatusBadGateway, 1)
	if _, err := c.CreatePolicy(ctx, policy("calls")); err == nil {
		t.Fatal("expected CreatePolicy to fail")
	}
	if n := auth.Count("POST /policy"); n != 1 {
		t.Errorf("create attempts = %d, want 1", n)
	}

	auth.FailNext("POST /subscription", http.StatusInternalServerError, 1)
	if _, err := c.Subscribe(ctx, "10.0.0.5", 9000); err == nil {
		t.Fatal("expected Subscribe to fail")
	}
	if n := auth.Count("POST /subscription"); n != 1 {
		t.Errorf("subscribe attempts = %d, want 1", n)
	}
}

func TestCreatesAreRetriedWhenRefused(t *testing.T) {
	c, auth := loggedIn(t)
	auth.FailNext("POST /subscription", http.StatusServiceUnavailable, 1)

	if _, err := c.Subscribe(context.Background(), "10.0.0.5", 9000); err != nil {
		t.Fatalf("Subscribe should succeed after a refused attempt: %v", err)
	}
	if n := auth.Count("POST /subscription"); n != 2 {
		t.Errorf("subscribe attempts = %d, want 2", n)
	}
	if len(auth.Subscriptions()) != 1 {
		t.Errorf("server has %d subscriptions, want 1", len(auth.Subscriptions()))
	}
}

func TestReplayable(t *testing.T) {
	tests := []struct {
		method, path string
		want         bool
	}{
		{http.MethodGet, "/policy", true},
		{http.MethodPut, "/policy/3", true},
		{http.MethodDelete, "/subscription/4", true},
		{http.MethodPost, "/auth/login", true},
		{http.MethodPost, "/policy", false},
		{http.MethodPost, "/subscription", false},
	}
	for _, tt := range tests {
		if got := replayable(tt.method, tt.path); got != tt.want {
			t.Errorf("replayable(%s %s) = %v, want %v", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(RequestIDHeader))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.GetSuspensions(context.Background(), 1); err != nil {
		t.Fatalf("GetSuspensions failed: %v", err)
	}
	if len(seen) != 1 || seen[0] == "" {
		t.Errorf("request id headers = %v", seen)
	}
}

func TestDecodeSingleResource(t *testing.T) {
	list, err := decodeResources[types.Subscription]([]byte(`{"entity":{"id":4,"hostname":"h","port":1},"meta":{"status":"200"}}`))
	if err != nil {
		t.Fatalf("decodeResources failed: %v", err)
	}
	if len(list) != 1 || *list[0].Entity.ID != 4 || list[0].Meta.Status != "200" {
		t.Errorf("decoded = %+v", list)
	}
}

func TestRouteOf(t *testing.T) {
	if got := routeOf("/policy/12/user/alice/metric"); got != "/policy/{id}/user/alice/metric" {
		t.Errorf("routeOf = %s", got)
	}
}
