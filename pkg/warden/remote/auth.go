package remote

import (
	"context"
	"fmt"
	"net/http"

	"mercator-hq/warden/pkg/warden/types"
)

// Login authenticates and stores the session cookie for later requests.
func (c *Client) Login(ctx context.Context, username, password string) error {
	creds := types.Credentials{Username: username, Password: password}
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds); err != nil {
		return fmt.Errorf("login as %s: %w", username, err)
	}
	c.logger.Info("logged in to warden", "endpoint", c.Endpoint(), "user", username)
	return nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
