package filter

import (
	"fmt"
	"net/http"
	"regexp"

	"mercator-hq/warden/pkg/warden/types"
)

// Route ties a URL and method pattern to the policies it charges.
type Route struct {
	URL      *regexp.Regexp
	Method   *regexp.Regexp
	Policies []types.Policy
}

// NewRoute compiles urlPattern and methodPattern. Both must match the
// whole path and method. An empty method pattern matches any method.
func NewRoute(urlPattern, methodPattern string, policies ...types.Policy) (Route, error) {
	if methodPattern == "" {
		methodPattern = ".*"
	}
	u, err := regexp.Compile(anchor(urlPattern))
	if err != nil {
		return Route{}, fmt.Errorf("invalid url pattern %q: %w", urlPattern, err)
	}
	m, err := regexp.Compile("(?i)" + anchor(methodPattern))
	if err != nil {
		return Route{}, fmt.Errorf("invalid method pattern %q: %w", methodPattern, err)
	}
	return Route{URL: u, Method: m, Policies: policies}, nil
}

// Matches reports whether r is covered by the route.
func (rt Route) Matches(r *http.Request) bool {
	return rt.URL.MatchString(r.URL.Path) && rt.Method.MatchString(r.Method)
}

func anchor(pattern string) string {
	return "^(?:" + pattern + ")$"
}
