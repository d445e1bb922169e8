package warden

import (
	"context"

	"mercator-hq/warden/pkg/warden/types"
)

// Service is the Warden authority as the client uses it. remote.Client is
// the HTTP implementation.
type Service interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error

	// GetPolicy returns (nil, nil) when no policy matches.
	GetPolicy(ctx context.Context, service, name string) (*types.Policy, error)
	CreatePolicy(ctx context.Context, p types.Policy) (*types.Policy, error)
	UpdatePolicy(ctx context.Context, id int64, p types.Policy) (*types.Policy, error)

	GetSuspensions(ctx context.Context, policyID int64) ([]types.Infraction, error)
	PushUsage(ctx context.Context, policyID int64, user string, samples map[int64]float64) error

	Subscribe(ctx context.Context, host string, port int) (*types.Subscription, error)
	Unsubscribe(ctx context.Context, id int64) error
}
