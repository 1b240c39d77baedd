package formatter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-scholar-sync/internal/core/history"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/presentation/layout"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// dateLayout is how snapshot times print in tables.
const dateLayout = "2006-01-02 15:04"

func unknownOutput(output string) error {
	return fmt.Errorf("unknown output format %q (want table, json or csv)", output)
}

// WriteHistory renders snapshots in the given output. The csv and json
// outputs are accepted back by history.Decode.
func WriteHistory(w io.Writer, output string, records []model.HistoryRecord, width int) error {
	switch output {
	case "table", "":
		cells := make([][]string, 0, len(records))
		for _, r := range records {
			cells = append(cells, []string{
				r.EntityID,
				util.FormatCount(r.MetricValue),
				r.Timestamp.Format(dateLayout),
			})
		}
		return writeGrid(w, layout.NewSizer(width), 0,
			[]string{"Scholar", "Citations", "Date"}, cells, "no history recorded")
	case "json":
		if records == nil {
			records = []model.HistoryRecord{}
		}
		return writeJSON(w, records)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(history.CSVHeader); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write([]string{
				r.EntityID,
				strconv.Itoa(r.MetricValue),
				r.Timestamp.UTC().Format(time.RFC3339),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return unknownOutput(output)
}

// WriteChanges renders a recent-changes feed in the given output.
func WriteChanges(w io.Writer, output string, changes []model.MetricChange, width int) error {
	switch output {
	case "table", "":
		cells := make([][]string, 0, len(changes))
		for _, c := range changes {
			name := c.DisplayName
			if name == "" {
				name = c.EntityID
			}
			cells = append(cells, []string{
				c.At.Format(dateLayout),
				name,
				util.FormatCount(c.OldValue),
				util.FormatCount(c.NewValue),
				util.FormatDelta(c.Delta),
			})
		}
		return writeGrid(w, layout.NewSizer(width), 1,
			[]string{"Date", "Scholar", "Before", "After", "Change"}, cells, "no changes")
	case "json":
		if changes == nil {
			changes = []model.MetricChange{}
		}
		return writeJSON(w, changes)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"Date", "Scholar ID", "Name", "Before", "After", "Change"}); err != nil {
			return err
		}
		for _, c := range changes {
			if err := cw.Write([]string{
				c.At.UTC().Format(time.RFC3339),
				c.EntityID,
				c.DisplayName,
				strconv.Itoa(c.OldValue),
				strconv.Itoa(c.NewValue),
				strconv.Itoa(c.Delta),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return unknownOutput(output)
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
