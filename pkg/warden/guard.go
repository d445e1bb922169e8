package warden

import (
	"fmt"
	"strings"

	"mercator-hq/warden/pkg/warden/types"
)

// CheckSuspended returns a *SuspendedError when user is suspended under
// policy. An entry whose suspension has ended is ignored until it is
// evicted.
func (c *Client) CheckSuspended(policy *types.Policy, user string) error {
	key, resolved, err := c.key(policy, user)
	if err != nil {
		return err
	}
	return c.checkKey(key, resolved)
}

// UpdateMetric replaces the usage value of user under policy.
func (c *Client) UpdateMetric(policy *types.Policy, user string, value float64) error {
	key, resolved, err := c.key(policy, user)
	if err != nil {
		return err
	}
	if err := c.checkKey(key, resolved); err != nil {
		return err
	}
	if err := c.values.Set(key, value); err != nil {
		return fmt.Errorf("update metric %s: %w", key, err)
	}
	c.metrics.UsageRecorded(key.PolicyID)
	return nil
}

// ModifyMetric adds delta to the usage value of user under policy. The
// first update for a key starts from the policy's default value.
func (c *Client) ModifyMetric(policy *types.Policy, user string, delta float64) error {
	key, resolved, err := c.key(policy, user)
	if err != nil {
		return err
	}
	if err := c.checkKey(key, resolved); err != nil {
		return err
	}
	if _, err := c.values.Accumulate(key, resolved.DefaultValue, delta); err != nil {
		return fmt.Errorf("modify metric %s: %w", key, err)
	}
	c.metrics.UsageRecorded(key.PolicyID)
	return nil
}

func (c *Client) checkKey(key types.Key, policy *types.Policy) error {
	inf, ok := c.infractions.Get(key)
	if !ok || !inf.IsSuspendedAt(c.now().UnixMilli()) {
		return nil
	}

	c.metrics.SuspensionEnforced(key.PolicyID)
	exp, _ := inf.Expiration()
	return &SuspendedError{
		Policy:    *policy,
		User:      key.User,
		ExpiresAt: exp,
		Value:     inf.Value,
	}
}

// key resolves the cache key. A policy without identity is looked up among
// the tracked policies by service and name.
func (c *Client) key(policy *types.Policy, user string) (types.Key, *types.Policy, error) {
	if policy == nil {
		return types.Key{}, nil, fmt.Errorf("%w: nil policy", ErrInvalidArgument)
	}
	if strings.TrimSpace(user) == "" {
		return types.Key{}, nil, fmt.Errorf("%w: empty user", ErrInvalidArgument)
	}

	if id, ok := policy.PolicyID(); ok {
		return types.Key{PolicyID: id, User: user}, policy, nil
	}
	tracked, ok := c.Policy(policy.Service, policy.Name)
	if !ok {
		return types.Key{}, nil, fmt.Errorf("%w: %s", ErrNotRegistered, policy.String())
	}
	id, _ := tracked.PolicyID()
	return types.Key{PolicyID: id, User: user}, &tracked, nil
}
