// Package growth computes windowed deltas of an entity's metric against the
// nearest historical snapshot.
package growth

import (
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/constants"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// Source is the read side of the history log.
type Source interface {
	Query(entityID string, from, to time.Time) []model.HistoryRecord
}

type Calculator struct {
	history Source
	clock   util.Clock
}

func NewCalculator(history Source, clock util.Clock) *Calculator {
	return &Calculator{history: history, clock: clock}
}

// Growth compares currentValue with the snapshot closest to now-windowDays.
// Only snapshots within windowDays/2 of the window start are candidates;
// without one, the earliest snapshot in the window is used.
func (c *Calculator) Growth(entityID string, currentValue int, windowDays int) model.GrowthResult {
	now := c.clock.Now()
	window := time.Duration(windowDays) * constants.Day
	windowStart := now.Add(-window)

	records := c.history.Query(entityID, windowStart, now)
	if len(records) == 0 {
		return model.GrowthResult{PreviousValue: currentValue}
	}

	tolerance := window / 2
	previous := records[0]
	best := time.Duration(-1)
	for _, r := range records {
		d := absDuration(r.Timestamp.Sub(windowStart))
		if d > tolerance {
			continue
		}
		if best < 0 || d < best {
			best = d
			previous = r
		}
	}

	return compute(previous.MetricValue, currentValue)
}

func compute(previous, current int) model.GrowthResult {
	result := model.GrowthResult{
		PreviousValue: previous,
		Delta:         current - previous,
	}
	if previous > 0 {
		result.Percentage = float64(result.Delta) / float64(previous) * 100
	}
	return result
}

// MultiPeriod returns the weekly, monthly and quarterly results.
func (c *Calculator) MultiPeriod(entityID string, currentValue int) model.GrowthPeriods {
	return model.GrowthPeriods{
		Weekly:    c.Growth(entityID, currentValue, constants.WeeklyWindowDays),
		Monthly:   c.Growth(entityID, currentValue, constants.MonthlyWindowDays),
		Quarterly: c.Growth(entityID, currentValue, constants.QuarterlyWindowDays),
	}
}

// Projection builds the widget view of e with growth fields filled in.
// Entities that were never fetched carry no growth.
func (c *Calculator) Projection(e model.TrackedEntity) model.WidgetProjection {
	p := model.ProjectionOf(e)
	if !e.HasValue() {
		return p
	}
	periods := c.MultiPeriod(e.ID, e.Value())
	p.WeeklyGrowth = model.IntPtr(periods.Weekly.Delta)
	p.MonthlyGrowth = model.IntPtr(periods.Monthly.Delta)
	p.QuarterlyGrowth = model.IntPtr(periods.Quarterly.Delta)
	return p
}

// Projections maps Projection over entities.
func (c *Calculator) Projections(entities []model.TrackedEntity) []model.WidgetProjection {
	out := make([]model.WidgetProjection, 0, len(entities))
	for _, e := range entities {
		out = append(out, c.Projection(e))
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
