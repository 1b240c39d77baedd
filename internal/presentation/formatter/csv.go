package formatter

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) Format(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	headers := []string{
		"Position", "ID", "Name", "Pinned", "Citations",
		"Weekly", "Monthly", "Quarterly", "Last Updated",
	}
	if err := cw.Write(headers); err != nil {
		return err
	}

	for _, row := range rows {
		updated := ""
		if row.LastUpdated != nil {
			updated = row.LastUpdated.UTC().Format(time.RFC3339)
		}
		record := []string{
			strconv.Itoa(row.Position),
			row.ID,
			row.Name,
			strconv.FormatBool(row.Pinned),
			optionalInt(row.Citations),
			optionalInt(row.Weekly),
			optionalInt(row.Monthly),
			optionalInt(row.Quarterly),
			updated,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
