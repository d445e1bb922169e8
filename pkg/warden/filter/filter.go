package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"mercator-hq/warden/pkg/warden"
	"mercator-hq/warden/pkg/warden/types"
)

// DefaultUserHeader carries the user name when no other header is set.
const DefaultUserHeader = "X-Warden-User"

// Enforcer charges usage and reports suspensions. *warden.Client
// implements it.
type Enforcer interface {
	ModifyMetric(policy *types.Policy, user string, delta float64) error
}

// Filter is HTTP middleware enforcing policies per route.
type Filter struct {
	enforcer   Enforcer
	routes     atomic.Pointer[[]Route]
	userHeader string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Filter.
type Option func(*Filter)

// WithUserHeader sets the request header naming the user.
func WithUserHeader(header string) Option {
	return func(f *Filter) {
		if header != "" {
			f.userHeader = header
		}
	}
}

// WithLogger sets the filter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

// WithClock sets the time source for Retry-After and messages.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		f.now = now
	}
}

// New creates a Filter charging usage through enforcer.
func New(enforcer Enforcer, routes []Route, opts ...Option) *Filter {
	f := &Filter{
		enforcer:   enforcer,
		userHeader: DefaultUserHeader,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "warden_filter")
	f.SetRoutes(routes)
	return f
}

// SetRoutes replaces the routes. Requests in flight keep the old set.
func (f *Filter) SetRoutes(routes []Route) {
	f.routes.Store(&routes)
}

// Routes returns the current routes.
func (f *Filter) Routes() []Route {
	return *f.routes.Load()
}

// Middleware wraps next with policy enforcement.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(f.userHeader)
		if user == "" {
			f.logger.DebugContext(r.Context(), "request without user, not enforced",
				"method", r.Method,
				"path", r.URL.Path,
			)
			next.ServeHTTP(w, r)
			return
		}

		for _, policy := range f.matched(r, user) {
			err := f.enforcer.ModifyMetric(policy, user, 1)
			if err == nil {
				continue
			}

			var suspended *warden.SuspendedError
			if errors.As(err, &suspended) {
				f.reject(w, r, suspended)
				return
			}
			// Bookkeeping failures do not block traffic.
			f.logger.WarnContext(r.Context(), "failed to charge usage",
				"policy", policy.String(),
				"user", user,
				"error", err,
			)
		}

		next.ServeHTTP(w, r)
	})
}

// matched returns the policies of every route matching r that list user,
// each once even when several routes carry it.
func (f *Filter) matched(r *http.Request, user string) []*types.Policy {
	var out []*types.Policy
	seen := make(map[string]bool)
	for _, route := range f.Routes() {
		if !route.Matches(r) {
			continue
		}
		for i := range route.Policies {
			policy := &route.Policies[i]
			if !policy.HasUser(user) {
				continue
			}
			id := policy.Service + "/" + policy.Name
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, policy)
		}
	}
	return out
}

func (f *Filter) reject(w http.ResponseWriter, r *http.Request, e *warden.SuspendedError) {
	now := f.now()
	if wait := e.RetryAfter(now); wait > 0 {
		secs := int64(math.Ceil(wait.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}

	f.logger.InfoContext(r.Context(), "request rejected, user suspended",
		"policy", e.Policy.String(),
		"user", e.User,
		"method", r.Method,
		"path", r.URL.Path,
	)
	http.Error(w, Message(e, now), http.StatusUnauthorized)
}

// Message describes a suspension for the rejected caller.
func Message(e *warden.SuspendedError, now time.Time) string {
	base := fmt.Sprintf("User %s is suspended for policy %s after %s requests",
		e.User, e.Policy.Name, humanize.Ftoa(e.Value))
	if e.Indefinite() {
		return base + ", suspension does not expire"
	}
	expiry := time.UnixMilli(e.ExpiresAt)
	return base + ", suspension will expire " + humanize.RelTime(expiry, now, "ago", "from now")
}
