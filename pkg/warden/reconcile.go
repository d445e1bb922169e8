package warden

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/warden/pkg/warden/types"
	"mercator-hq/warden/pkg/warden/updater"
)

// reconcileAll reconciles each policy in order and seeds its suspensions.
// It stops at the first failure; earlier policies stay reconciled.
func (c *Client) reconcileAll(ctx context.Context, declared []types.Policy) ([]types.Policy, error) {
	reconciled := make([]types.Policy, 0, len(declared))
	for _, p := range declared {
		r, err := c.reconcilePolicy(ctx, p)
		if err != nil {
			return nil, err
		}

		id, _ := r.PolicyID()
		n, err := updater.Pull(ctx, c.service, c.infractions, id)
		if err != nil {
			return nil, fmt.Errorf("seed suspensions of policy %s: %w", r.String(), err)
		}
		c.logger.Debug("suspensions seeded", "policy", r.String(), "count", n)

		reconciled = append(reconciled, r)
	}
	return reconciled, nil
}

// reconcilePolicy makes the authority's copy of a policy match the
// declared one and returns the declared policy with its identity.
func (c *Client) reconcilePolicy(ctx context.Context, declared types.Policy) (types.Policy, error) {
	existing, err := c.service.GetPolicy(ctx, declared.Service, declared.Name)
	if err != nil {
		return types.Policy{}, fmt.Errorf("look up policy %s: %w", declared.String(), err)
	}

	if existing == nil {
		declared.ID = nil
		created, err := c.service.CreatePolicy(ctx, declared)
		if err != nil {
			return types.Policy{}, fmt.Errorf("create policy %s: %w", declared.String(), err)
		}
		id, ok := created.PolicyID()
		if !ok {
			return types.Policy{}, fmt.Errorf("create policy %s: authority assigned no id", declared.String())
		}
		c.reconciled(ReconcileCreated, declared, id)
		return declared.WithID(id), nil
	}

	id, ok := existing.PolicyID()
	if !ok {
		return types.Policy{}, fmt.Errorf("policy %s on authority has no id", declared.String())
	}

	if declared.Equal(existing) {
		c.reconciled(ReconcileUnchanged, declared, id)
		return declared.WithID(id), nil
	}

	update := declared.WithID(id)
	if _, err := c.service.UpdatePolicy(ctx, id, update); err != nil {
		return types.Policy{}, fmt.Errorf("update policy %s: %w", update.String(), err)
	}
	c.reconciled(ReconcileUpdated, declared, id)
	return update, nil
}

func (c *Client) reconciled(action string, p types.Policy, id int64) {
	c.metrics.PolicyReconciled(action)
	c.logger.Info("policy reconciled", "action", action, "service", p.Service, "name", p.Name, "policy_id", id)
}

// SyncPolicies reconciles policies with the authority in a session of its
// own and returns them with their identities. It is meant for one-shot use
// and neither tracks the policies nor starts synchronization.
func (c *Client) SyncPolicies(ctx context.Context, policies []types.Policy) ([]types.Policy, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if s := c.State(); s != StateUnregistered {
		return nil, fmt.Errorf("%w: sync policies while %s", ErrInvalidState, s)
	}

	declared, err := prepare(policies)
	if err != nil {
		return nil, err
	}

	if err := c.service.Login(ctx, c.cfg.Username, c.cfg.Password); err != nil {
		return nil, fmt.Errorf("sync policies: %w", err)
	}

	reconciled := make([]types.Policy, 0, len(declared))
	for _, p := range declared {
		r, err := c.reconcilePolicy(ctx, p)
		if err != nil {
			err = fmt.Errorf("sync policies: %w", err)
			if lerr := c.service.Logout(ctx); lerr != nil {
				err = errors.Join(err, lerr)
			}
			return nil, err
		}
		reconciled = append(reconciled, r)
	}

	if err := c.service.Logout(ctx); err != nil {
		return reconciled, fmt.Errorf("sync policies: %w", err)
	}
	return reconciled, nil
}
