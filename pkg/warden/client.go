package warden

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/warden/pkg/warden/cache"
	"mercator-hq/warden/pkg/warden/events"
	"mercator-hq/warden/pkg/warden/scheduler"
	"mercator-hq/warden/pkg/warden/storage"
	"mercator-hq/warden/pkg/warden/types"
	"mercator-hq/warden/pkg/warden/updater"
)

// Client enforces usage policies against locally cached state.
type Client struct {
	// cfg holds the configuration with defaults applied.
	cfg Config

	// service is the remote authority.
	service Service

	logger *slog.Logger

	// metrics receives usage, suspension and state updates. Never nil.
	metrics Metrics

	// storage persists the caches across restarts. Nil disables it.
	storage storage.Backend

	// now is the clock shared with the infraction cache.
	now func() time.Time

	// values holds usage not yet pushed to the authority.
	values *cache.ValueCache

	// infractions holds the suspensions consulted by the guard.
	infractions *cache.InfractionCache

	// state is a State, read without holding lifecycle.
	state atomic.Int32

	// lifecycle serializes Register, Unregister and Reconcile.
	lifecycle sync.Mutex

	// policies are the reconciled policies, each carrying its identity.
	policiesMu sync.RWMutex
	policies   []types.Policy

	// Runtime components, owned by the goroutine holding lifecycle.
	supervisor    atomic.Pointer[scheduler.Supervisor]
	server        *events.Server
	subscription  *types.Subscription
	janitorCancel context.CancelFunc
	janitorDone   <-chan struct{}
	loggedIn      bool
}

// New creates an unregistered Client talking to service.
func New(service Service, cfg Config, opts ...Option) (*Client, error) {
	if service == nil {
		return nil, fmt.Errorf("%w: nil service", ErrInvalidArgument)
	}
	cfg.applyDefaults()

	c := &Client{
		cfg:     cfg,
		service: service,
		logger:  slog.Default(),
		metrics: noopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "warden_client")

	c.values = cache.NewValueCache()
	c.infractions = cache.NewInfractionCache(
		cache.WithClock(c.now),
		cache.WithLogger(c.logger),
	)
	return c, nil
}

// State returns the current registration state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.StateChanged(s.String())
	c.logger.Debug("state changed", "state", s.String())
}

// Values exposes the usage cache.
func (c *Client) Values() *cache.ValueCache {
	return c.values
}

// Infractions exposes the suspension cache.
func (c *Client) Infractions() *cache.InfractionCache {
	return c.infractions
}

// Policies returns the reconciled policies, with identities.
func (c *Client) Policies() []types.Policy {
	c.policiesMu.RLock()
	defer c.policiesMu.RUnlock()

	return slices.Clone(c.policies)
}

// PolicyIDs returns the identities of the tracked policies. It implements
// updater.PolicySet.
func (c *Client) PolicyIDs() []int64 {
	c.policiesMu.RLock()
	defer c.policiesMu.RUnlock()

	ids := make([]int64, 0, len(c.policies))
	for i := range c.policies {
		if id, ok := c.policies[i].PolicyID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Policy looks up a tracked policy by service and name.
func (c *Client) Policy(service, name string) (types.Policy, bool) {
	c.policiesMu.RLock()
	defer c.policiesMu.RUnlock()

	for _, p := range c.policies {
		if p.Service == service && p.Name == name {
			return p, true
		}
	}
	return types.Policy{}, false
}

func (c *Client) setPolicies(policies []types.Policy) {
	c.policiesMu.Lock()
	c.policies = policies
	c.policiesMu.Unlock()
}

// Subscription returns the live event subscription, if any.
func (c *Client) Subscription() (types.Subscription, bool) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.subscription == nil {
		return types.Subscription{}, false
	}
	return *c.subscription, true
}

// Register logs in, reconciles policies and starts synchronization.
func (c *Client) Register(ctx context.Context, policies []types.Policy) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if s := c.State(); s != StateUnregistered {
		return fmt.Errorf("%w: register while %s", ErrInvalidState, s)
	}

	declared, err := prepare(policies)
	if err != nil {
		return err
	}

	c.setState(StateRegistering)
	start := time.Now()

	if err := c.register(ctx, declared); err != nil {
		if rerr := c.teardown(ctx); rerr != nil {
			c.logger.Warn("rollback of failed register incomplete", "error", rerr)
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
		c.setState(StateUnregistered)
		return fmt.Errorf("register: %w", err)
	}

	c.setState(StateRegistered)
	c.logger.Info("registered with warden",
		"policies", len(declared),
		"subscribed", c.subscription != nil,
		"duration", time.Since(start),
	)
	return nil
}

func (c *Client) register(ctx context.Context, declared []types.Policy) error {
	c.restore(ctx)

	if err := c.service.Login(ctx, c.cfg.Username, c.cfg.Password); err != nil {
		return err
	}
	c.loggedIn = true

	reconciled, err := c.reconcileAll(ctx, declared)
	if err != nil {
		return err
	}
	c.setPolicies(reconciled)

	if err := c.startSync(); err != nil {
		return err
	}
	return c.startEvents(ctx)
}

// Reconcile aligns a new set of declared policies with the authority while
// registered and replaces the tracked set.
func (c *Client) Reconcile(ctx context.Context, policies []types.Policy) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if s := c.State(); s != StateRegistered {
		return fmt.Errorf("%w: reconcile while %s", ErrInvalidState, s)
	}

	declared, err := prepare(policies)
	if err != nil {
		return err
	}
	reconciled, err := c.reconcileAll(ctx, declared)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	c.setPolicies(reconciled)

	c.logger.Info("policies reconciled", "policies", len(reconciled))
	return nil
}

// Unregister stops synchronization and ends the session. Every step runs
// even if an earlier one fails; the errors are joined.
func (c *Client) Unregister(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if s := c.State(); s != StateRegistered {
		return fmt.Errorf("%w: unregister while %s", ErrInvalidState, s)
	}
	c.setState(StateUnregistering)

	err := c.teardown(ctx)

	c.setState(StateUnregistered)
	if err != nil {
		c.logger.Warn("unregistered with errors", "error", err)
		return fmt.Errorf("unregister: %w", err)
	}
	c.logger.Info("unregistered from warden")
	return nil
}

// teardown stops whatever is running, in reverse start order.
func (c *Client) teardown(ctx context.Context) error {
	var errs []error

	if c.subscription != nil {
		if id := c.subscription.ID; id != nil {
			if err := c.service.Unsubscribe(ctx, *id); err != nil {
				errs = append(errs, err)
			}
		}
		c.subscription = nil
	}

	if c.server != nil {
		closeCtx, cancel := context.WithTimeout(ctx, c.cfg.StopTimeout)
		if err := c.server.Close(closeCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
		c.server = nil
	}

	if sup := c.supervisor.Swap(nil); sup != nil {
		if !sup.Stop(c.cfg.StopTimeout) {
			c.logger.Warn("sync tasks did not stop in time, continuing", "timeout", c.cfg.StopTimeout)
		}
	}

	if c.janitorCancel != nil {
		c.janitorCancel()
		select {
		case <-c.janitorDone:
		case <-time.After(c.cfg.StopTimeout):
			c.logger.Warn("cache janitor did not stop in time")
		}
		c.janitorCancel = nil
	}

	if c.storage != nil {
		if err := c.checkpoint().Run(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if c.loggedIn {
		if err := c.service.Logout(ctx); err != nil {
			errs = append(errs, err)
		}
		c.loggedIn = false
	}

	return errors.Join(errs...)
}

func (c *Client) startSync() error {
	sup := scheduler.New(
		scheduler.WithLogger(c.logger),
		scheduler.WithObserver(c.metrics),
	)

	err := sup.Register(TaskPushUsage, scheduler.Every(c.cfg.PushInitialDelay, c.cfg.PushInterval), func() scheduler.Task {
		return updater.NewMetricUpdater(c.values, c.service,
			updater.WithLogger(c.logger),
			updater.WithObserver(c.metrics),
			updater.WithClock(c.now),
		)
	})
	if err != nil {
		return err
	}

	err = sup.Register(TaskPullSuspensions, scheduler.Every(c.cfg.PullInitialDelay, c.cfg.PullInterval), func() scheduler.Task {
		return updater.NewInfractionUpdater(c, c.service, c.infractions,
			updater.WithLogger(c.logger),
			updater.WithObserver(c.metrics),
		)
	})
	if err != nil {
		return err
	}

	if c.storage != nil && c.cfg.CheckpointSchedule != "" {
		schedule, err := scheduler.Cron(c.cfg.CheckpointSchedule)
		if err != nil {
			return err
		}
		err = sup.Register(TaskCheckpoint, schedule, func() scheduler.Task {
			return c.checkpoint()
		})
		if err != nil {
			return err
		}
	}

	sup.Start()
	c.supervisor.Store(sup)

	if c.cfg.JanitorInterval > 0 {
		janitorCtx, cancel := context.WithCancel(context.Background())
		c.janitorCancel = cancel
		c.janitorDone = c.infractions.StartJanitor(janitorCtx, c.cfg.JanitorInterval)
	}
	return nil
}

func (c *Client) startEvents(ctx context.Context) error {
	if c.cfg.Listener.Address == "" {
		c.logger.Info("event listener disabled, relying on suspension polling")
		return nil
	}

	server, err := events.NewServer(c.cfg.Listener, c.infractions,
		events.WithLogger(c.logger),
		events.WithObserver(c.metrics),
	)
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	c.server = server

	host := c.cfg.AdvertiseHost
	if host == "" {
		if host, err = os.Hostname(); err != nil {
			return fmt.Errorf("resolve advertise host: %w", err)
		}
	}

	sub, err := c.service.Subscribe(ctx, host, server.Port())
	if err != nil {
		return err
	}
	c.subscription = sub
	return nil
}

func (c *Client) checkpoint() *storage.Checkpoint {
	return storage.NewCheckpoint(c.storage, c.values, c.infractions, c.logger)
}

// restore loads persisted caches. Failures are logged; registration
// proceeds with empty caches.
func (c *Client) restore(ctx context.Context) {
	if c.storage == nil {
		return
	}
	values, infractions, err := storage.Restore(ctx, c.storage)
	if err != nil {
		c.logger.Warn("failed to restore persisted caches", "error", err)
		return
	}
	c.values.Restore(values)
	c.infractions.Restore(infractions)
	c.logger.Info("restored persisted caches", "values", len(values), "infractions", len(infractions))
}

// SyncNow runs the push and pull tasks once, outside their schedules.
func (c *Client) SyncNow() error {
	sup := c.supervisor.Load()
	if sup == nil || c.State() != StateRegistered {
		return fmt.Errorf("%w: sync while %s", ErrInvalidState, c.State())
	}
	return errors.Join(sup.RunNow(TaskPushUsage), sup.RunNow(TaskPullSuspensions))
}

// ReportCacheSizes publishes the current cache sizes to Metrics.
func (c *Client) ReportCacheSizes() {
	c.metrics.CacheSizes(c.values.Len(), c.infractions.Len())
}

func prepare(policies []types.Policy) ([]types.Policy, error) {
	declared := slices.Clone(policies)
	seen := make(map[string]bool, len(declared))
	var errs []error
	for i := range declared {
		declared[i].Normalize()
		if err := declared[i].Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		id := declared[i].Service + "/" + declared[i].Name
		if seen[id] {
			errs = append(errs, fmt.Errorf("policy %s declared twice", id))
		}
		seen[id] = true
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, errors.Join(errs...))
	}
	return declared, nil
}
