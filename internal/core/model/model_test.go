package model

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackedEntityDerivedFieldsNotSerialized(t *testing.T) {
	e := TrackedEntity{ID: "A", DisplayName: "Ada", MetricValue: IntPtr(5), Pinned: true, OrderIndex: 3}

	data, err := sonic.Marshal(e)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Pinned")
	assert.NotContains(t, string(data), "OrderIndex")

	var back TrackedEntity
	require.NoError(t, sonic.Unmarshal(data, &back))
	assert.False(t, back.Pinned)
	assert.Equal(t, 5, back.Value())
}

func TestRefreshMarkerDecodesLegacyShape(t *testing.T) {
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		expected RefreshState
	}{
		{
			name:     "tagged",
			input:    `{"entity_id":"A","state":"done","completed_at":"2024-03-01T10:00:00Z"}`,
			expected: RefreshDone,
		},
		{
			name:     "legacy in progress",
			input:    `{"entity_id":"A","in_progress":true,"started_at":"2024-03-01T10:00:00Z"}`,
			expected: RefreshInProgress,
		},
		{
			name:     "legacy completed",
			input:    `{"entity_id":"A","in_progress":false,"completed_at":"2024-03-01T10:00:00Z"}`,
			expected: RefreshDone,
		},
		{
			name:     "legacy empty",
			input:    `{"entity_id":"A"}`,
			expected: RefreshIdle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m RefreshMarker
			require.NoError(t, sonic.Unmarshal([]byte(tt.input), &m))
			assert.Equal(t, "A", m.EntityID)
			assert.Equal(t, tt.expected, m.State)
		})
	}

	var m RefreshMarker
	require.NoError(t, sonic.Unmarshal([]byte(`{"entity_id":"A","in_progress":true,"started_at":"2024-03-01T10:00:00Z"}`), &m))
	require.NotNil(t, m.StartedAt)
	assert.True(t, started.Equal(*m.StartedAt))
	assert.True(t, m.InProgress())
}

func TestProjectionOfCopiesFields(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	e := TrackedEntity{ID: "A", DisplayName: "Ada", MetricValue: IntPtr(100), LastUpdated: TimePtr(at), Pinned: true}

	p := ProjectionOf(e)
	assert.Equal(t, "A", p.EntityID)
	assert.Equal(t, "Ada", p.DisplayName)
	require.NotNil(t, p.MetricValue)
	assert.Equal(t, 100, *p.MetricValue)
	assert.Nil(t, p.WeeklyGrowth)

	*e.MetricValue = 1
	assert.Equal(t, 100, *p.MetricValue, "projection must not alias the entity")
}

func TestSameHelpers(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, SameValue(nil, nil))
	assert.False(t, SameValue(IntPtr(1), nil))
	assert.True(t, SameValue(IntPtr(1), IntPtr(1)))

	assert.True(t, SameInstant(nil, nil))
	assert.False(t, SameInstant(TimePtr(at), nil))
	assert.True(t, SameInstant(TimePtr(at), TimePtr(at.In(time.FixedZone("X", 3600)))))
}
