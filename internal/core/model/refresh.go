package model

import (
	"time"

	"github.com/bytedance/sonic"
)

// RefreshState is the tag of a RefreshMarker.
type RefreshState string

const (
	RefreshIdle       RefreshState = "idle"
	RefreshInProgress RefreshState = "in_progress"
	RefreshDone       RefreshState = "done"
)

// RefreshMarker records an in-flight fetch for one entity. It is persisted as a
// single value so that readers never observe a half-written marker.
//
//	idle                     no timestamps
//	in_progress{started_at}  StartedAt set
//	done{completed_at}       CompletedAt set
type RefreshMarker struct {
	EntityID    string       `json:"entity_id"`
	State       RefreshState `json:"state"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// InProgress reports the raw tag, without applying any staleness rule.
func (m RefreshMarker) InProgress() bool {
	return m.State == RefreshInProgress
}

// legacyRefreshMarker is the older shape that stored the flag and timestamps
// as independent fields.
type legacyRefreshMarker struct {
	EntityID    string       `json:"entity_id"`
	State       RefreshState `json:"state"`
	InProgress  *bool        `json:"in_progress"`
	StartedAt   *time.Time   `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at"`
}

func (m *RefreshMarker) UnmarshalJSON(data []byte) error {
	var raw legacyRefreshMarker
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.EntityID = raw.EntityID
	m.StartedAt = raw.StartedAt
	m.CompletedAt = raw.CompletedAt
	m.State = raw.State

	if m.State == "" {
		switch {
		case raw.InProgress != nil && *raw.InProgress:
			m.State = RefreshInProgress
		case raw.CompletedAt != nil:
			m.State = RefreshDone
		default:
			m.State = RefreshIdle
		}
	}
	return nil
}
