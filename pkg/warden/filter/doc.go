// Package filter enforces Warden policies on inbound HTTP requests.
//
// A Filter maps each request to policies through its routes. A route
// matches when both its URL and method patterns match the whole request
// path and method. For every matched policy that lists the requesting user,
// the filter charges one unit of usage. A suspended user is answered with
// 401 Unauthorized and the wrapped handler is not called.
//
// Example:
//
//	route, _ := filter.NewRoute("/api/orders/.*", "POST|PUT", policy)
//	f := filter.New(client, []filter.Route{route})
//	handler = f.Middleware(handler)
package filter
