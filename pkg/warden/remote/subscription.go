package remote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"mercator-hq/warden/pkg/warden/types"
)

// Subscribe asks the authority to push infractions to host:port.
func (c *Client) Subscribe(ctx context.Context, host string, port int) (*types.Subscription, error) {
	sub := types.Subscription{Hostname: host, Port: port}
	body, err := c.do(ctx, http.MethodPost, "/subscription", nil, sub)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", sub.Address(), err)
	}

	resources, err := decodeResources[types.Subscription](body)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", sub.Address(), err)
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("subscribe %s: empty response", sub.Address())
	}
	created := resources[0].Entity
	return &created, nil
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(ctx context.Context, id int64) error {
	if _, err := c.do(ctx, http.MethodDelete, "/subscription/"+strconv.FormatInt(id, 10), nil, nil); err != nil {
		return fmt.Errorf("unsubscribe %d: %w", id, err)
	}
	return nil
}
