// Package server runs the enforcing reverse proxy.
//
// Every request that is not a telemetry endpoint passes through the
// middleware stack, the tracing middleware and the Warden filter before it
// is forwarded to the upstream service. Requests from suspended users are
// answered with 401 by the filter and never reach the upstream.
//
//	srv, err := server.New(&cfg.Proxy, server.Options{
//	    Filter: f,
//	    Tracer: tel.Tracer(),
//	    Logger: logger,
//	    Mount:  tel.Mount,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
//
// Run returns after ctx is cancelled and in-flight requests have drained,
// or after ShutdownTimeout, whichever comes first.
package server
