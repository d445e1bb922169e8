package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"mercator-hq/warden/pkg/warden/types"
)

// GetPolicy looks a policy up by service and name. A missing policy is
// reported as (nil, nil).
func (c *Client) GetPolicy(ctx context.Context, service, name string) (*types.Policy, error) {
	query := url.Values{}
	query.Set("serviceName", service)
	query.Set("policyName", name)

	body, err := c.do(ctx, http.MethodGet, "/policy", query, nil)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy %s/%s: %w", service, name, err)
	}

	resources, err := decodeResources[types.Policy](body)
	if err != nil {
		return nil, fmt.Errorf("get policy %s/%s: %w", service, name, err)
	}
	for _, p := range entities(resources) {
		if p.Service == service && p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

// CreatePolicies registers new policies and returns them with their
// assigned identities.
func (c *Client) CreatePolicies(ctx context.Context, policies []types.Policy) ([]types.Policy, error) {
	body, err := c.do(ctx, http.MethodPost, "/policy", nil, policies)
	if err != nil {
		return nil, fmt.Errorf("create %d policies: %w", len(policies), err)
	}

	resources, err := decodeResources[types.Policy](body)
	if err != nil {
		return nil, fmt.Errorf("create policies: %w", err)
	}
	return entities(resources), nil
}

// CreatePolicy registers one policy.
func (c *Client) CreatePolicy(ctx context.Context, p types.Policy) (*types.Policy, error) {
	created, err := c.CreatePolicies(ctx, []types.Policy{p})
	if err != nil {
		return nil, err
	}
	for i := range created {
		if created[i].Service == p.Service && created[i].Name == p.Name {
			return &created[i], nil
		}
	}
	return nil, fmt.Errorf("create policy %s: authority returned no matching policy", p.String())
}

// UpdatePolicy replaces the policy with the given id. The policy must
// carry the same id.
func (c *Client) UpdatePolicy(ctx context.Context, id int64, p types.Policy) (*types.Policy, error) {
	if pid, ok := p.PolicyID(); !ok || pid != id {
		return nil, fmt.Errorf("update policy %d: %w", id, ErrIDMismatch)
	}

	body, err := c.do(ctx, http.MethodPut, "/policy/"+strconv.FormatInt(id, 10), nil, p)
	if err != nil {
		return nil, fmt.Errorf("update policy %d: %w", id, err)
	}

	resources, err := decodeResources[types.Policy](body)
	if err != nil {
		return nil, fmt.Errorf("update policy %d: %w", id, err)
	}
	if len(resources) == 0 {
		return &p, nil
	}
	updated := resources[0].Entity
	return &updated, nil
}

// GetSuspensions lists the active suspensions of a policy.
func (c *Client) GetSuspensions(ctx context.Context, policyID int64) ([]types.Infraction, error) {
	body, err := c.do(ctx, http.MethodGet, "/policy/"+strconv.FormatInt(policyID, 10)+"/suspension", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get suspensions of policy %d: %w", policyID, err)
	}

	resources, err := decodeResources[types.Infraction](body)
	if err != nil {
		return nil, fmt.Errorf("get suspensions of policy %d: %w", policyID, err)
	}
	return entities(resources), nil
}

// PushUsage reports usage samples, keyed by epoch milliseconds, for a user
// under a policy.
func (c *Client) PushUsage(ctx context.Context, policyID int64, user string, samples map[int64]float64) error {
	path := "/policy/" + strconv.FormatInt(policyID, 10) + "/user/" + url.PathEscape(user) + "/metric"
	if _, err := c.do(ctx, http.MethodPut, path, nil, samples); err != nil {
		return fmt.Errorf("push usage of %s under policy %d: %w", user, policyID, err)
	}
	return nil
}
