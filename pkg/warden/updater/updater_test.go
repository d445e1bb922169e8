package updater

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/warden/pkg/warden/cache"
	"mercator-hq/warden/pkg/warden/types"
)

type fakePusher struct {
	mu     sync.Mutex
	pushes map[types.Key]map[int64]float64
	failOn map[types.Key]bool
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushes: map[types.Key]map[int64]float64{}, failOn: map[types.Key]bool{}}
}

func (f *fakePusher) PushUsage(_ context.Context, policyID int64, user string, samples map[int64]float64) error {
	key := types.Key{PolicyID: policyID, User: user}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[key] {
		return errors.New("push rejected")
	}
	f.pushes[key] = samples
	return nil
}

type countingObserver struct {
	mu                 sync.Mutex
	pushed, pushFailed int
	pulled, pullFailed int
}

func (c *countingObserver) UsagePushed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.pushFailed++
		return
	}
	c.pushed++
}

func (c *countingObserver) SuspensionsPulled(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.pullFailed++
		return
	}
	c.pulled += n
}

func TestMinuteTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 4, 10, 15, 42, 500_000_000, time.UTC)
	want := time.Date(2026, 3, 4, 10, 15, 0, 0, time.UTC).UnixMilli()
	if got := MinuteTimestamp(ts); got != want {
		t.Errorf("MinuteTimestamp = %d, want %d", got, want)
	}
	if MinuteTimestamp(ts)%60000 != 0 {
		t.Error("timestamp is not a whole minute")
	}
}

func TestMetricUpdaterPushesEveryEntry(t *testing.T) {
	values := cache.NewValueCache()
	a := types.Key{PolicyID: 1, User: "alice"}
	b := types.Key{PolicyID: 2, User: "bob"}
	_ = values.Set(a, 3)
	_ = values.Set(b, 7)

	now := time.Date(2026, 3, 4, 10, 15, 42, 0, time.UTC)
	pusher := newFakePusher()
	u := NewMetricUpdater(values, pusher, WithClock(func() time.Time { return now }))

	if err := u.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	ts := MinuteTimestamp(now)
	if pusher.pushes[a][ts] != 3 || pusher.pushes[b][ts] != 7 {
		t.Errorf("pushes = %v", pusher.pushes)
	}
	if values.Len() != 2 {
		t.Error("values must not be cleared after push")
	}
}

func TestMetricUpdaterContinuesAfterFailure(t *testing.T) {
	values := cache.NewValueCache()
	bad := types.Key{PolicyID: 1, User: "bad"}
	good := types.Key{PolicyID: 1, User: "good"}
	_ = values.Set(bad, 1)
	_ = values.Set(good, 2)

	pusher := newFakePusher()
	pusher.failOn[bad] = true
	obs := &countingObserver{}
	u := NewMetricUpdater(values, pusher, WithObserver(obs))

	err := u.Run(context.Background())
	if err == nil {
		t.Fatal("expected a summary error")
	}
	if _, ok := pusher.pushes[good]; !ok {
		t.Error("good entry should still be pushed")
	}
	if obs.pushed != 1 || obs.pushFailed != 1 {
		t.Errorf("observer pushed=%d failed=%d", obs.pushed, obs.pushFailed)
	}
}

func TestMetricUpdaterEmptyCache(t *testing.T) {
	pusher := newFakePusher()
	u := NewMetricUpdater(cache.NewValueCache(), pusher)
	if err := u.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(pusher.pushes) != 0 {
		t.Error("empty cache should push nothing")
	}
}

type fakeFetcher struct {
	byPolicy map[int64][]types.Infraction
	fail     map[int64]bool
}

func (f *fakeFetcher) GetSuspensions(_ context.Context, id int64) ([]types.Infraction, error) {
	if f.fail[id] {
		return nil, errors.New("unavailable")
	}
	return f.byPolicy[id], nil
}

func TestInfractionUpdaterIsolatesFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		byPolicy: map[int64][]types.Infraction{
			3: {{PolicyID: 3, Username: "carol", ExpirationTimestamp: types.Int64(types.IndefiniteExpiration)}},
		},
		fail: map[int64]bool{2: true},
	}
	infractions := cache.NewInfractionCache()
	obs := &countingObserver{}
	u := NewInfractionUpdater(PolicyIDs{2, 3}, fetcher, infractions, WithObserver(obs))

	if err := u.Run(context.Background()); err == nil {
		t.Fatal("expected summary error for the failed policy")
	}
	if _, ok := infractions.Get(types.Key{PolicyID: 3, User: "carol"}); !ok {
		t.Error("policy 3 suspensions should be stored despite policy 2 failing")
	}
	if obs.pulled != 1 || obs.pullFailed != 1 {
		t.Errorf("observer pulled=%d failed=%d", obs.pulled, obs.pullFailed)
	}
}

type mutableSet struct {
	mu  sync.Mutex
	ids []int64
}

func (m *mutableSet) PolicyIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.ids...)
}

func TestInfractionUpdaterReadsPolicySetEachRun(t *testing.T) {
	fetcher := &fakeFetcher{byPolicy: map[int64][]types.Infraction{
		1: {{PolicyID: 1, Username: "a"}},
		2: {{PolicyID: 2, Username: "b"}},
	}}
	infractions := cache.NewInfractionCache()
	set := &mutableSet{ids: []int64{1}}
	u := NewInfractionUpdater(set, fetcher, infractions)

	_ = u.Run(context.Background())
	if infractions.Len() != 1 {
		t.Fatalf("Len = %d, want 1", infractions.Len())
	}

	set.mu.Lock()
	set.ids = []int64{1, 2}
	set.mu.Unlock()

	_ = u.Run(context.Background())
	if infractions.Len() != 2 {
		t.Errorf("Len = %d after policy set grew, want 2", infractions.Len())
	}
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	values := cache.NewValueCache()
	_ = values.Set(types.Key{PolicyID: 1, User: "a"}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := NewMetricUpdater(values, newFakePusher())
	if err := u.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}
