// Package remote implements the HTTP contract of the Warden authority.
//
// The authority speaks JSON over HTTP. Every response body is a list of
// resources, each wrapping one entity with a meta block:
//
//	[{"entity": {...}, "meta": {"href": "...", "status": "200", ...}}]
//
// Client keeps a cookie session established by Login and reuses pooled
// connections. Transient failures (transport errors, 429 and 5xx
// responses) are retried with exponential backoff; every other non-2xx
// status is returned immediately as an *APIError.
//
// Each request carries an X-Request-ID header and runs inside an
// OpenTelemetry client span.
//
// # Usage
//
//	client, err := remote.New(remote.Config{Endpoint: "https://warden.example.com/warden/ws"})
//	if err != nil {
//	    return err
//	}
//	if err := client.Login(ctx, user, password); err != nil {
//	    return err
//	}
//	defer client.Logout(ctx)
package remote
