// Package logging builds the process *slog.Logger.
//
// The handler it returns adds request-scoped fields stored in the context
// (request id, user, policy id) to every record logged with a *Context
// method, and optionally redacts credentials before they are written:
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "login", "password", "hunter2") // password=***
//
// Redaction covers values under sensitive keys (password, token, cookie,
// authorization and similar), bearer tokens, session cookies and
// credentials embedded in URLs.
package logging
