package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userKey      contextKey = "user"
	policyIDKey  contextKey = "policy_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithUser adds the enforced user to the context.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser retrieves the enforced user from the context.
func GetUser(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// WithPolicyID adds a policy identity to the context.
func WithPolicyID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, policyIDKey, id)
}

// GetPolicyID retrieves the policy identity from the context.
func GetPolicyID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(policyIDKey).(int64)
	return id, ok
}

func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, slog.String(string(requestIDKey), id))
	}
	if user := GetUser(ctx); user != "" {
		attrs = append(attrs, slog.String(string(userKey), user))
	}
	if id, ok := GetPolicyID(ctx); ok {
		attrs = append(attrs, slog.Int64(string(policyIDKey), id))
	}
	return attrs
}
