package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
)

// CSVHeader is the column layout of exported and imported CSV history.
var CSVHeader = []string{"Scholar ID", "Citation Count", "Date"}

// ErrUnknownFormat is returned for import formats other than json and csv.
var ErrUnknownFormat = errors.New("unknown history format")

// Batch is the decoded content of an import file.
type Batch struct {
	Records []model.HistoryRecord
	// Names maps scholar ids to the display names the file carried, if any.
	Names map[string]string
	// Skipped counts entries without an id, a count or a parseable time.
	Skipped int
}

// entry accepts both the exported record layout and the camel-case layout
// older app versions wrote.
type entry struct {
	EntityID      string `json:"entity_id"`
	ScholarID     string `json:"scholarId"`
	ScholarName   string `json:"scholarName"`
	MetricValue   *int   `json:"metric"`
	CitationCount *int   `json:"citationCount"`
	Timestamp     string `json:"timestamp"`
}

// Decode reads history records in format "json" or "csv".
func Decode(r io.Reader, format string) (Batch, error) {
	switch strings.ToLower(format) {
	case "json":
		return decodeJSON(r)
	case "csv":
		return decodeCSV(r)
	}
	return Batch{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func decodeJSON(r io.Reader) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, err
	}
	var entries []entry
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return Batch{}, fmt.Errorf("decode history json: %w", err)
	}

	batch := Batch{Names: make(map[string]string)}
	for _, e := range entries {
		id := e.EntityID
		if id == "" {
			id = e.ScholarID
		}
		value := e.MetricValue
		if value == nil {
			value = e.CitationCount
		}
		ts, err := time.Parse(time.RFC3339, e.Timestamp)
		if id == "" || value == nil || err != nil {
			batch.Skipped++
			continue
		}
		if e.ScholarName != "" {
			batch.Names[id] = e.ScholarName
		}
		batch.Records = append(batch.Records, model.HistoryRecord{EntityID: id, MetricValue: *value, Timestamp: ts})
	}
	return batch, nil
}

func decodeCSV(r io.Reader) (Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return Batch{}, fmt.Errorf("decode history csv: %w", err)
	}

	batch := Batch{Names: make(map[string]string)}
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), CSVHeader[0]) {
			continue
		}
		if len(row) < len(CSVHeader) {
			batch.Skipped++
			continue
		}
		id := strings.TrimSpace(row[0])
		value, verr := strconv.Atoi(strings.TrimSpace(row[1]))
		ts, terr := time.Parse(time.RFC3339, strings.TrimSpace(row[2]))
		if id == "" || verr != nil || terr != nil {
			batch.Skipped++
			continue
		}
		batch.Records = append(batch.Records, model.HistoryRecord{EntityID: id, MetricValue: value, Timestamp: ts})
	}
	return batch, nil
}
