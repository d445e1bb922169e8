package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"mercator-hq/warden/pkg/warden/types"
)

// GetUserSuspensions lists the suspensions of a user across policies.
func (c *Client) GetUserSuspensions(ctx context.Context, user string) ([]types.Infraction, error) {
	return c.userInfractions(ctx, user, "suspension")
}

// GetUserInfractions lists every infraction recorded for a user.
func (c *Client) GetUserInfractions(ctx context.Context, user string) ([]types.Infraction, error) {
	return c.userInfractions(ctx, user, "infraction")
}

func (c *Client) userInfractions(ctx context.Context, user, kind string) ([]types.Infraction, error) {
	body, err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(user)+"/"+kind, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get %ss of %s: %w", kind, user, err)
	}
	resources, err := decodeResources[types.Infraction](body)
	if err != nil {
		return nil, fmt.Errorf("get %ss of %s: %w", kind, user, err)
	}
	return entities(resources), nil
}
