package model

import "time"

// TrackedEntity is one monitored scholar and its current citation count.
// Pinned and OrderIndex are derived from the persisted pin set and display order
// and are never serialized with the entity itself.
type TrackedEntity struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"name"`
	MetricValue *int       `json:"metric,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Pinned      bool       `json:"-"`
	OrderIndex  int        `json:"-"`
}

// HasValue reports whether the entity was ever fetched.
func (e TrackedEntity) HasValue() bool {
	return e.MetricValue != nil
}

// Value returns the metric value, or 0 when the entity was never fetched.
func (e TrackedEntity) Value() int {
	if e.MetricValue == nil {
		return 0
	}
	return *e.MetricValue
}

// IntPtr and TimePtr build optional fields.
func IntPtr(v int) *int {
	return &v
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

// SameInstant compares optional timestamps, treating two nils as equal.
func SameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// SameValue compares optional metric values, treating two nils as equal.
func SameValue(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
