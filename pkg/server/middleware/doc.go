// Package middleware provides the HTTP middleware stack of the enforcing
// proxy.
//
// The stack is applied outermost first:
//
//	handler = middleware.Chain(proxy,
//	    middleware.RequestID,
//	    middleware.Recovery(logger),
//	    middleware.Logging(logger, recorder, userHeader),
//	)
//
// RequestID stores the request ID with logging.WithRequestID, so every
// record logged through a context-aware slog call carries it.
package middleware
