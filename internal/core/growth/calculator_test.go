package growth

import (
	"testing"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/history"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func newTestCalculator() (*Calculator, *history.Log, *util.ManualClock) {
	clock := util.NewManualClock(t0)
	log := history.NewLog(store.NewMemoryStore(), clock, nil)
	return NewCalculator(log, clock), log, clock
}

func TestGrowthWithoutHistory(t *testing.T) {
	c, _, _ := newTestCalculator()

	result := c.Growth("A", 42, 7)

	assert.Equal(t, model.GrowthResult{PreviousValue: 42, Delta: 0, Percentage: 0}, result)
}

func TestGrowthWeeklyScenario(t *testing.T) {
	c, log, clock := newTestCalculator()

	_, err := log.Append("A", 100, t0)
	require.NoError(t, err)
	clock.Advance(7 * day)

	result := c.Growth("A", 110, 7)

	assert.Equal(t, 100, result.PreviousValue)
	assert.Equal(t, 10, result.Delta)
	assert.InDelta(t, 10.0, result.Percentage, 1e-9)
}

func TestGrowthPicksClosestToWindowStart(t *testing.T) {
	c, log, clock := newTestCalculator()

	for i, v := range []int{10, 20, 30, 40} {
		_, err := log.Append("A", v, t0.Add(time.Duration(i)*2*day))
		require.NoError(t, err)
	}
	// Window start is t0+1d.
	clock.Set(t0.Add(31 * day))

	result := c.Growth("A", 50, 30)
	assert.Equal(t, 20, result.PreviousValue, "t0 is outside the window, t0+2d is closest")
	assert.Equal(t, 30, result.Delta)
	assert.InDelta(t, 150.0, result.Percentage, 1e-9)
}

func TestGrowthFallsBackToEarliestOutsideTolerance(t *testing.T) {
	c, log, clock := newTestCalculator()

	// Both snapshots are more than 3.5 days after the 7-day window start.
	_, err := log.Append("A", 60, t0.Add(5*day))
	require.NoError(t, err)
	_, err = log.Append("A", 80, t0.Add(6*day))
	require.NoError(t, err)
	clock.Set(t0.Add(7 * day))

	result := c.Growth("A", 90, 7)
	assert.Equal(t, 60, result.PreviousValue)
	assert.Equal(t, 30, result.Delta)
}

func TestGrowthZeroPrevious(t *testing.T) {
	c, log, clock := newTestCalculator()

	_, err := log.Append("A", 0, t0)
	require.NoError(t, err)
	clock.Advance(7 * day)

	result := c.Growth("A", 5, 7)
	assert.Equal(t, 5, result.Delta)
	assert.Equal(t, 0.0, result.Percentage)
}

func TestGrowthNegativeDelta(t *testing.T) {
	c, log, clock := newTestCalculator()

	_, err := log.Append("A", 200, t0)
	require.NoError(t, err)
	clock.Advance(7 * day)

	result := c.Growth("A", 150, 7)
	assert.Equal(t, -50, result.Delta)
	assert.InDelta(t, -25.0, result.Percentage, 1e-9)
}

func TestMultiPeriod(t *testing.T) {
	c, log, clock := newTestCalculator()

	_, err := log.Append("A", 100, t0)
	require.NoError(t, err)
	_, err = log.Append("A", 160, t0.Add(60*day))
	require.NoError(t, err)
	_, err = log.Append("A", 185, t0.Add(83*day))
	require.NoError(t, err)
	clock.Set(t0.Add(90 * day))

	periods := c.MultiPeriod("A", 200)
	assert.Equal(t, 185, periods.Weekly.PreviousValue)
	assert.Equal(t, 160, periods.Monthly.PreviousValue)
	assert.Equal(t, 100, periods.Quarterly.PreviousValue)
	assert.Equal(t, 100, periods.Quarterly.Delta)
}

func TestProjection(t *testing.T) {
	c, log, clock := newTestCalculator()

	_, err := log.Append("A", 100, t0)
	require.NoError(t, err)
	clock.Advance(7 * day)

	e := model.TrackedEntity{ID: "A", DisplayName: "Ada", MetricValue: model.IntPtr(110), LastUpdated: model.TimePtr(clock.Now())}
	p := c.Projection(e)

	require.NotNil(t, p.WeeklyGrowth)
	assert.Equal(t, 10, *p.WeeklyGrowth)
	require.NotNil(t, p.QuarterlyGrowth)
	assert.Equal(t, 10, *p.QuarterlyGrowth)

	empty := c.Projection(model.TrackedEntity{ID: "B", DisplayName: "Bea"})
	assert.Nil(t, empty.WeeklyGrowth)
	assert.Nil(t, empty.MetricValue)

	all := c.Projections([]model.TrackedEntity{e, {ID: "B"}})
	assert.Len(t, all, 2)
}
