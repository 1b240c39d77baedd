package history

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONAcceptsBothLayouts(t *testing.T) {
	in := `[
		{"entity_id":"A","metric":10,"timestamp":"2024-03-01T12:00:00Z"},
		{"scholarId":"B","scholarName":"Bea","citationCount":7,"timestamp":"2024-03-02T12:00:00+02:00"},
		{"scholarId":"C","timestamp":"2024-03-02T12:00:00Z"},
		{"entity_id":"D","metric":1,"timestamp":"yesterday"}
	]`

	batch, err := Decode(strings.NewReader(in), "json")
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)
	assert.Equal(t, 2, batch.Skipped)

	assert.Equal(t, "A", batch.Records[0].EntityID)
	assert.Equal(t, 10, batch.Records[0].MetricValue)
	assert.True(t, t0.Equal(batch.Records[0].Timestamp))

	assert.Equal(t, "B", batch.Records[1].EntityID)
	assert.True(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC).Equal(batch.Records[1].Timestamp))
	assert.Equal(t, map[string]string{"B": "Bea"}, batch.Names)
}

func TestDecodeCSV(t *testing.T) {
	in := "Scholar ID,Citation Count,Date\n" +
		"A,10,2024-03-01T12:00:00Z\n" +
		"A,many,2024-03-02T12:00:00Z\n" +
		"B,3\n"

	batch, err := Decode(strings.NewReader(in), "CSV")
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, 2, batch.Skipped)
	assert.True(t, t0.Equal(batch.Records[0].Timestamp))
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader("{}"), "json")
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(""), "xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExportedHistoryImportsBack(t *testing.T) {
	l, _, _ := newTestLog()
	_, err := l.Append("A", 1, t0)
	require.NoError(t, err)
	_, err = l.Append("A", 2, t0.Add(48*time.Hour))
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.WriteString(strings.Join(CSVHeader, ",") + "\n")
	for _, r := range l.All() {
		fmt.Fprintf(&buf, "%s,%d,%s\n", r.EntityID, r.MetricValue, r.Timestamp.UTC().Format(time.RFC3339))
	}

	batch, err := Decode(&buf, "csv")
	require.NoError(t, err)

	other, _, _ := newTestLog()
	n, err := other.ImportBatch(batch.Records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want, got := l.All(), other.All()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].EntityID, got[i].EntityID)
		assert.Equal(t, want[i].MetricValue, got[i].MetricValue)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
	}
}
