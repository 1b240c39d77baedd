package model

import "time"

// WidgetProjection is the read-optimized view shared with the companion process.
// It is derived and peer-writable; identity, pin state and order never come from it.
type WidgetProjection struct {
	EntityID        string     `json:"id"`
	DisplayName     string     `json:"name"`
	MetricValue     *int       `json:"metric,omitempty"`
	LastUpdated     *time.Time `json:"last_updated,omitempty"`
	WeeklyGrowth    *int       `json:"weekly_growth,omitempty"`
	MonthlyGrowth   *int       `json:"monthly_growth,omitempty"`
	QuarterlyGrowth *int       `json:"quarterly_growth,omitempty"`
}

// ProjectionOf builds a projection carrying only the entity fields.
func ProjectionOf(e TrackedEntity) WidgetProjection {
	p := WidgetProjection{
		EntityID:    e.ID,
		DisplayName: e.DisplayName,
	}
	if e.MetricValue != nil {
		p.MetricValue = IntPtr(*e.MetricValue)
	}
	if e.LastUpdated != nil {
		p.LastUpdated = TimePtr(*e.LastUpdated)
	}
	return p
}

// SyncMarker is the global change marker polled by every process.
type SyncMarker struct {
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GrowthResult is the change of a metric over one lookback window.
type GrowthResult struct {
	PreviousValue int     `json:"previous"`
	Delta         int     `json:"delta"`
	Percentage    float64 `json:"percentage"`
}

// GrowthPeriods holds the 7/30/90-day results.
type GrowthPeriods struct {
	Weekly    GrowthResult `json:"weekly"`
	Monthly   GrowthResult `json:"monthly"`
	Quarterly GrowthResult `json:"quarterly"`
}
