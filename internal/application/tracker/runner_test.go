package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/migration"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/core/notify"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processes struct {
	shared     *store.MemoryStore
	clock      *util.ManualClock
	bus        *notify.MemoryBus
	host       *Host
	hostHub    *notify.Hub
	companion  *Companion
	companionT *notify.MemoryTransport
}

func newProcesses(t *testing.T) *processes {
	t.Helper()
	p := &processes{
		shared: store.NewMemoryStore(),
		clock:  util.NewManualClock(t0),
		bus:    notify.NewMemoryBus(),
	}

	p.hostHub = notify.NewHub(p.bus.Transport(), nil)
	p.host = NewHost(Deps{Shared: p.shared, Clock: p.clock, Notifier: p.hostHub})

	p.companionT = p.bus.Transport()
	companionHub := notify.NewHub(p.companionT, nil)
	p.companion = NewCompanion(Deps{Shared: p.shared, Clock: p.clock, Notifier: companionHub}, store.NewMemoryStore())

	t.Cleanup(func() {
		_ = p.hostHub.Close()
		_ = companionHub.Close()
	})
	return p
}

type updates struct {
	mu  sync.Mutex
	ids [][]string
}

func (u *updates) record(ids []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ids = append(u.ids, ids)
}

func (u *updates) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.ids)
}

func startRunner(t *testing.T, p *processes, opts RunnerOptions) *Runner {
	t.Helper()
	r := NewRunner(p.host, p.hostHub, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	require.Eventually(t, func() bool { return p.bus.Listeners() == 1 }, time.Second, time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("runner did not stop")
		}
	})
	return r
}

func hostValue(p *processes, id string) int {
	e, _ := p.host.Entity(id)
	return e.Value()
}

func TestRunnerReconcilesOnPush(t *testing.T) {
	p := newProcesses(t)
	require.NoError(t, p.host.CommitFetchResult("A", 100, "Ada", t0))

	var u updates
	startRunner(t, p, RunnerOptions{PollInterval: time.Hour, OnUpdate: u.record})

	require.NoError(t, p.companion.CommitFetchResult("A", 110, "", t0.Add(time.Hour)))

	assert.Eventually(t, func() bool { return hostValue(p, "A") == 110 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return u.count() == 1 }, time.Second, time.Millisecond)
}

func TestRunnerPollCatchesDroppedPush(t *testing.T) {
	p := newProcesses(t)
	require.NoError(t, p.host.CommitFetchResult("A", 100, "Ada", t0))
	p.companionT.SetDrop(true)

	startRunner(t, p, RunnerOptions{PollInterval: 10 * time.Millisecond})

	require.NoError(t, p.companion.CommitFetchResult("A", 120, "", t0.Add(time.Hour)))

	assert.Eventually(t, func() bool { return hostValue(p, "A") == 120 }, time.Second, time.Millisecond)
}

func TestRunnerForegroundResync(t *testing.T) {
	p := newProcesses(t)
	require.NoError(t, p.host.CommitFetchResult("A", 100, "Ada", t0))
	p.companionT.SetDrop(true)

	foreground := make(chan struct{}, 1)
	startRunner(t, p, RunnerOptions{PollInterval: time.Hour, Foreground: foreground})

	require.NoError(t, p.companion.CommitFetchResult("A", 130, "", t0.Add(time.Hour)))
	assert.Never(t, func() bool { return hostValue(p, "A") == 130 }, 50*time.Millisecond, 5*time.Millisecond)

	foreground <- struct{}{}
	assert.Eventually(t, func() bool { return hostValue(p, "A") == 130 }, time.Second, time.Millisecond)
}

func TestRunnerInitialPassAndMigration(t *testing.T) {
	p := newProcesses(t)
	legacy := store.NewMemoryStore()
	require.NoError(t, legacy.Set(store.KeyEntities, []byte(`[{"id":"L","name":"Legacy","metric":7}]`), false))
	require.NoError(t, legacy.Set(store.KeyDisplayOrder, []byte(`["L"]`), false))

	r := startRunner(t, p, RunnerOptions{
		PollInterval: time.Hour,
		Migration:    migration.NewService(p.shared, legacy, nil),
	})

	assert.Equal(t, []string{"L"}, ids(t, p.host))
	assert.GreaterOrEqual(t, r.Passes(), int64(1))
}

func TestRunnerStartRefreshesGrowthWindows(t *testing.T) {
	p := newProcesses(t)
	require.NoError(t, p.host.CommitFetchResult("A", 100, "Ada", t0))
	_, err := p.host.ImportHistory([]model.HistoryRecord{{EntityID: "A", MetricValue: 90, Timestamp: t0.Add(-7 * day)}})
	require.NoError(t, err)
	require.Equal(t, 10, *p.host.Projections()[0].WeeklyGrowth)

	// The host was down for three days; the week-old snapshot left the window.
	p.clock.Advance(3 * day)
	startRunner(t, p, RunnerOptions{PollInterval: time.Hour})

	var stored []model.WidgetProjection
	require.True(t, store.GetJSON(p.shared, store.KeyProjections, &stored, nil))
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].WeeklyGrowth)
	assert.Equal(t, 0, *stored[0].WeeklyGrowth)
}

func TestRunnerStopsDeliveringAfterShutdown(t *testing.T) {
	p := newProcesses(t)
	require.NoError(t, p.host.CommitFetchResult("A", 100, "Ada", t0))

	r := NewRunner(p.host, p.hostHub, RunnerOptions{PollInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	require.Eventually(t, func() bool { return p.bus.Listeners() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	passes := r.Passes()

	p.hostHub.Deliver(notify.TopicEntities)
	assert.Never(t, func() bool { return r.Passes() > passes }, 50*time.Millisecond, 5*time.Millisecond)
}
