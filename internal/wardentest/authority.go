// Package wardentest provides an in-process Warden authority for tests.
package wardentest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mercator-hq/warden/pkg/warden/types"
)

// SessionCookie is the cookie the fake authority issues on login.
const SessionCookie = "JSESSIONID"

// Push is one recorded usage report.
type Push struct {
	PolicyID int64
	User     string
	Samples  map[int64]float64
}

// Update is one recorded policy update, with the payload as sent.
type Update struct {
	PathID int64
	Policy types.Policy
}

// Request is one recorded call.
type Request struct {
	Method string
	Path   string
}

type failure struct {
	status    int
	remaining int
}

// Authority is a stateful fake of the Warden web services.
type Authority struct {
	server *httptest.Server

	mu            sync.Mutex
	nextID        int64
	policies      map[int64]types.Policy
	suspensions   map[int64][]types.Infraction
	subscriptions map[int64]types.Subscription
	pushes        []Push
	updates       []Update
	requests      []Request
	sessions      map[string]bool
	failures      map[string]*failure
	username      string
	password      string
}

// NewAuthority starts a fake authority accepting the given credentials.
func NewAuthority(username, password string) *Authority {
	a := &Authority{
		nextID:        100,
		policies:      make(map[int64]types.Policy),
		suspensions:   make(map[int64][]types.Infraction),
		subscriptions: make(map[int64]types.Subscription),
		sessions:      make(map[string]bool),
		failures:      make(map[string]*failure),
		username:      username,
		password:      password,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", a.login)
	mux.HandleFunc("GET /auth/logout", a.authed(a.logout))
	mux.HandleFunc("GET /policy", a.authed(a.getPolicy))
	mux.HandleFunc("POST /policy", a.authed(a.createPolicies))
	mux.HandleFunc("PUT /policy/{id}", a.authed(a.updatePolicy))
	mux.HandleFunc("GET /policy/{id}/suspension", a.authed(a.getSuspensions))
	mux.HandleFunc("PUT /policy/{id}/user/{user}/metric", a.authed(a.pushMetric))
	mux.HandleFunc("POST /subscription", a.authed(a.subscribe))
	mux.HandleFunc("DELETE /subscription/{id}", a.authed(a.unsubscribe))
	mux.HandleFunc("GET /user/{user}/suspension", a.authed(a.userSuspensions))
	// Only suspensions are recorded, so they are also the infraction history.
	mux.HandleFunc("GET /user/{user}/infraction", a.authed(a.userSuspensions))

	a.server = httptest.NewServer(a.record(mux))
	return a
}

// URL returns the base URL of the fake authority.
func (a *Authority) URL() string {
	return a.server.URL
}

// Close stops the server.
func (a *Authority) Close() {
	a.server.Close()
}

// FailNext makes the next n requests matching "METHOD /path" fail with status.
func (a *Authority) FailNext(route string, status, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failures[route] = &failure{status: status, remaining: n}
}

// SeedPolicy stores a policy as if it had been created earlier and
// returns its identity.
func (a *Authority) SeedPolicy(p types.Policy) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.allocID()
	p = p.WithID(id)
	a.policies[id] = p
	return id
}

// SetSuspensions replaces the active suspensions of a policy.
func (a *Authority) SetSuspensions(policyID int64, infractions ...types.Infraction) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.suspensions[policyID] = append([]types.Infraction(nil), infractions...)
}

// Policies returns a copy of the stored policies keyed by id.
func (a *Authority) Policies() map[int64]types.Policy {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[int64]types.Policy, len(a.policies))
	for k, v := range a.policies {
		out[k] = v
	}
	return out
}

// Pushes returns the recorded usage reports.
func (a *Authority) Pushes() []Push {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Push(nil), a.pushes...)
}

// Updates returns the policy updates received, in order.
func (a *Authority) Updates() []Update {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Update(nil), a.updates...)
}

// Subscriptions returns the live subscriptions.
func (a *Authority) Subscriptions() []types.Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]types.Subscription, 0, len(a.subscriptions))
	for _, s := range a.subscriptions {
		out = append(out, s)
	}
	return out
}

// Requests returns every recorded call in arrival order.
func (a *Authority) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Request(nil), a.requests...)
}

// Count returns how many calls matched "METHOD /path".
func (a *Authority) Count(route string) int {
	n := 0
	for _, r := range a.Requests() {
		if r.Method+" "+r.Path == route {
			n++
		}
	}
	return n
}

func (a *Authority) allocID() int64 {
	a.nextID++
	return a.nextID
}

func (a *Authority) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		a.mu.Lock()
		a.requests = append(a.requests, Request{Method: r.Method, Path: r.URL.Path})
		f := a.failures[route]
		status := 0
		if f != nil && f.remaining > 0 {
			f.remaining--
			status = f.status
		}
		a.mu.Unlock()

		if status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authority) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		a.mu.Lock()
		ok := err == nil && a.sessions[cookie.Value]
		a.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		next(w, r)
	}
}

func (a *Authority) login(w http.ResponseWriter, r *http.Request) {
	var creds types.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if creds.Username != a.username || creds.Password != a.password {
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}

	session := uuid.NewString()
	a.mu.Lock()
	a.sessions[session] = true
	a.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: session, Path: "/"})
	writeResources(w, http.StatusOK, []any{map[string]string{"userName": creds.Username}})
}

func (a *Authority) logout(w http.ResponseWriter, r *http.Request) {
	cookie, _ := r.Cookie(SessionCookie)
	a.mu.Lock()
	delete(a.sessions, cookie.Value)
	a.mu.Unlock()
	writeResources(w, http.StatusOK, nil)
}

func (a *Authority) getPolicy(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("serviceName")
	name := r.URL.Query().Get("policyName")

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range a.policies {
		if p.Service == service && p.Name == name {
			writeResources(w, http.StatusOK, []any{p})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Not Found")
}

func (a *Authority) createPolicies(w http.ResponseWriter, r *http.Request) {
	var in []types.Policy
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]any, 0, len(in))
	for _, p := range in {
		p = p.WithID(a.allocID())
		a.policies[*p.ID] = p
		out = append(out, p)
	}
	writeResources(w, http.StatusOK, out)
}

func (a *Authority) updatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p types.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.updates = append(a.updates, Update{PathID: id, Policy: p})
	if _, exists := a.policies[id]; !exists {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	p = p.WithID(id)
	a.policies[id] = p
	writeResources(w, http.StatusOK, []any{p})
}

func (a *Authority) getSuspensions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]any, 0, len(a.suspensions[id]))
	for _, inf := range a.suspensions[id] {
		out = append(out, inf)
	}
	writeResources(w, http.StatusOK, out)
}

func (a *Authority) pushMetric(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var samples map[int64]float64
	if err := json.NewDecoder(r.Body).Decode(&samples); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a.mu.Lock()
	a.pushes = append(a.pushes, Push{PolicyID: id, User: r.PathValue("user"), Samples: samples})
	a.mu.Unlock()

	writeResources(w, http.StatusOK, nil)
}

func (a *Authority) subscribe(w http.ResponseWriter, r *http.Request) {
	var sub types.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a.mu.Lock()
	id := a.allocID()
	sub.ID = &id
	a.subscriptions[id] = sub
	a.mu.Unlock()

	writeResources(w, http.StatusOK, []any{sub})
}

func (a *Authority) unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	delete(a.subscriptions, id)
	a.mu.Unlock()

	writeResources(w, http.StatusOK, nil)
}

func (a *Authority) userSuspensions(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")

	a.mu.Lock()
	defer a.mu.Unlock()

	out := []any{}
	for _, list := range a.suspensions {
		for _, inf := range list {
			if inf.Username == user {
				out = append(out, inf)
			}
		}
	}
	writeResources(w, http.StatusOK, out)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeResources(w http.ResponseWriter, status int, entities []any) {
	resources := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		resources = append(resources, map[string]any{
			"entity": e,
			"meta": map[string]string{
				"status":  strconv.Itoa(status),
				"message": http.StatusText(status),
			},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resources)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode([]map[string]any{{
		"entity": nil,
		"meta": map[string]string{
			"status":     strconv.Itoa(status),
			"message":    http.StatusText(status),
			"devMessage": strings.TrimSpace(msg),
		},
	}})
}
