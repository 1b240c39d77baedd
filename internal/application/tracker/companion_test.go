package tracker

import (
	"testing"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanionCheck(t *testing.T) {
	f := newFixture()
	h := f.host()
	c := f.companion()

	assert.False(t, c.Check(), "nothing written yet")

	require.NoError(t, h.CommitFetchResult("A", 1, "Ada", t0))
	assert.True(t, c.Check())
	assert.False(t, c.Check(), "second invocation sees no change")

	f.clock.Advance(time.Minute)
	require.NoError(t, h.Pin("A"))
	assert.True(t, c.Check(), "pin order is part of the widget view")

	require.NoError(t, h.CommitFetchResult("A", 2, "", f.clock.Now()))
	assert.True(t, c.Check())
	assert.False(t, c.Check())
}

func TestCompanionCheckSurvivesRestart(t *testing.T) {
	f := newFixture()
	h := f.host()
	local := store.NewMemoryStore()

	require.NoError(t, h.CommitFetchResult("A", 1, "Ada", t0))
	assert.True(t, NewCompanion(f.deps(), local).Check())
	assert.False(t, NewCompanion(f.deps(), local).Check())
}

func TestCompanionSnapshot(t *testing.T) {
	f := newFixture()
	c := f.companion()
	assert.Empty(t, c.Snapshot())

	require.NoError(t, f.shared.Set(store.KeyProjections, []byte("not json"), false))
	assert.Empty(t, c.Snapshot())

	h := f.host()
	require.NoError(t, h.Track("B", "Bea"))
	require.NoError(t, h.CommitFetchResult("A", 3, "Ada", t0))

	snapshot := c.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "B", snapshot[0].EntityID)
	assert.Equal(t, "A", snapshot[1].EntityID)
}

func TestCompanionCommitNeverWritesEntities(t *testing.T) {
	f := newFixture()
	h := f.host()
	require.NoError(t, h.CommitFetchResult("A", 100, "Ada", t0))
	require.NoError(t, h.Track("B", "Bea"))

	before := f.shared.Snapshot()
	c := f.companion()
	require.NoError(t, c.CommitFetchResult("A", 110, "Someone Else", t0.Add(time.Hour)))
	after := f.shared.Snapshot()

	for _, key := range []string{store.KeyEntities, store.KeyDisplayOrder, store.KeyPinnedIDs} {
		assert.Equal(t, before[key], after[key], key)
	}

	snapshot := c.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "Ada", snapshot[0].DisplayName)
	assert.Equal(t, 110, *snapshot[0].MetricValue)
	assert.Nil(t, snapshot[1].MetricValue, "other projections are untouched")

	assert.Equal(t, 3, f.notifier.count())
	assert.False(t, c.Check(), "own commit is already seen")
}

func TestCompanionCommitUnknownEntity(t *testing.T) {
	f := newFixture()
	c := f.companion()

	err := c.CommitFetchResult("Z", 1, "Zed", t0)
	assert.ErrorIs(t, err, ErrUnknownEntity)
	assert.Equal(t, 0, f.shared.Writes())
}

func TestCompanionLeaseVisibleToHost(t *testing.T) {
	f := newFixture()
	h := f.host()
	c := f.companion()
	require.NoError(t, h.CommitFetchResult("A", 1, "Ada", t0))

	ok, err := c.BeginFetch("A")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.BeginFetch("A")
	require.NoError(t, err)
	assert.False(t, ok)

	f.clock.Advance(5*time.Minute + time.Second)
	ok, err = h.BeginFetch("A")
	require.NoError(t, err)
	assert.True(t, ok, "a crashed companion's lease is reclaimed")
}

// A=100 at t0; seven days later the companion fetches 110; the host
// reconciles and reports 10% weekly growth.
func TestWeeklyGrowthAcrossProcesses(t *testing.T) {
	f := newFixture()
	h := f.host()
	require.NoError(t, h.CommitFetchResult("A", 100, "Ada", t0))

	f.clock.Advance(7 * day)
	c := f.companion()
	require.NoError(t, c.CommitFetchResult("A", 110, "", f.clock.Now()))

	result, err := h.Reconcile()
	require.NoError(t, err)
	require.True(t, result.Changed)
	assert.Equal(t, []string{"A"}, result.ChangedIDs)

	e, _ := h.Entity("A")
	assert.Equal(t, 110, e.Value())
	assert.True(t, t0.Add(7*day).Equal(*e.LastUpdated))

	detail, ok := h.GrowthDetail("A", 7)
	require.True(t, ok)
	assert.Equal(t, 100, detail.PreviousValue)
	assert.Equal(t, 10, detail.Delta)
	assert.InDelta(t, 10.0, detail.Percentage, 1e-9)

	again, err := h.Reconcile()
	require.NoError(t, err)
	assert.False(t, again.Changed)
}
