package model

import "time"

// HistoryRecord is one immutable snapshot of an entity's metric.
type HistoryRecord struct {
	EntityID    string    `json:"entity_id"`
	MetricValue int       `json:"metric"`
	Timestamp   time.Time `json:"timestamp"`
}

// MetricChange is the difference between two consecutive snapshots of an entity.
type MetricChange struct {
	EntityID    string    `json:"entity_id"`
	DisplayName string    `json:"name,omitempty"`
	OldValue    int       `json:"old"`
	NewValue    int       `json:"new"`
	Delta       int       `json:"delta"`
	At          time.Time `json:"at"`
}
