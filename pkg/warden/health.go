package warden

import (
	"context"
	"errors"
	"fmt"
)

// HealthChecks returns readiness checks for the client.
func (c *Client) HealthChecks() map[string]func(ctx context.Context) error {
	return map[string]func(ctx context.Context) error{
		"warden_registration": func(context.Context) error {
			if s := c.State(); s != StateRegistered {
				return fmt.Errorf("client is %s", s)
			}
			return nil
		},
		"warden_sync": func(context.Context) error {
			sup := c.supervisor.Load()
			if sup == nil || !sup.Running() {
				return errors.New("sync scheduler not running")
			}
			return nil
		},
	}
}
