package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/presentation/layout"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

const (
	nameColumn   = 1
	minNameWidth = 8
	pinMark      = "* "
	missingValue = "-"
)

type TableFormatter struct {
	headers []string
	sizer   *layout.Sizer
	now     func() time.Time
}

// NewTableFormatter creates a table renderer fitted to width display cells.
func NewTableFormatter(now func() time.Time, width int) *TableFormatter {
	if now == nil {
		now = time.Now
	}
	return &TableFormatter{
		headers: []string{"#", "Scholar", "Citations", "7d", "30d", "90d", "Updated"},
		sizer:   layout.NewSizer(width),
		now:     now,
	}
}

func (f *TableFormatter) Format(w io.Writer, rows []Row) error {
	tw := &tableWriter{w: w, sizer: f.sizer, left: nameColumn}

	cells := make([][]string, 0, len(rows))
	var totalCitations, totalWeekly, totalMonthly, totalQuarterly int
	for _, row := range rows {
		cells = append(cells, f.cells(row))
		totalCitations += valueOr(row.Citations)
		totalWeekly += valueOr(row.Weekly)
		totalMonthly += valueOr(row.Monthly)
		totalQuarterly += valueOr(row.Quarterly)
	}
	totals := []string{
		"", "Total",
		util.FormatCount(totalCitations),
		util.FormatDelta(totalWeekly),
		util.FormatDelta(totalMonthly),
		util.FormatDelta(totalQuarterly),
		"",
	}

	widths := f.calculateColumnWidths(cells, totals)

	tw.printBorder(widths, "top")
	tw.printRow(f.headers, widths)
	tw.printBorder(widths, "middle")
	if len(cells) == 0 {
		tw.printRow([]string{"", "no scholars tracked", "", "", "", "", ""}, widths)
	}
	for _, c := range cells {
		tw.printRow(c, widths)
	}
	tw.printBorder(widths, "middle")
	tw.printRow(totals, widths)
	tw.printBorder(widths, "bottom")

	return tw.err
}

func (f *TableFormatter) cells(row Row) []string {
	name := row.Name
	if name == "" {
		name = row.ID
	}
	if row.Pinned {
		name = pinMark + name
	}

	citations := missingValue
	if row.Citations != nil {
		citations = util.FormatCount(*row.Citations)
	}

	updated := "never"
	if row.LastUpdated != nil {
		updated = util.FormatAge(f.now().Sub(*row.LastUpdated)) + " ago"
	}
	if row.Fetching {
		updated = "updating"
	}

	return []string{
		strconv.Itoa(row.Position),
		name,
		citations,
		formatGrowth(row.Weekly),
		formatGrowth(row.Monthly),
		formatGrowth(row.Quarterly),
		updated,
	}
}

// calculateColumnWidths sizes every column to its content, then narrows the
// name column until the table fits the terminal.
func (f *TableFormatter) calculateColumnWidths(cells [][]string, totals []string) []int {
	widths := make([]int, len(f.headers))
	for i, header := range f.headers {
		widths[i] = f.sizer.DisplayWidth(header)
	}
	measure := func(values []string) {
		for i, value := range values {
			if n := f.sizer.DisplayWidth(value); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for _, c := range cells {
		measure(c)
	}
	measure(totals)
	if len(cells) == 0 && widths[nameColumn] < len("no scholars tracked") {
		widths[nameColumn] = len("no scholars tracked")
	}

	total := 1
	for _, width := range widths {
		total += width + 3
	}
	if over := total - f.sizer.Width; over > 0 {
		widths[nameColumn] -= over
		if widths[nameColumn] < minNameWidth {
			widths[nameColumn] = minNameWidth
		}
	}
	return widths
}

func formatGrowth(delta *int) string {
	if delta == nil {
		return missingValue
	}
	return util.FormatDelta(*delta)
}

func valueOr(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// tableWriter keeps the first write error so the printing code stays linear.
// Column left is left-aligned, the rest are right-aligned.
type tableWriter struct {
	w     io.Writer
	sizer *layout.Sizer
	left  int
	err   error
}

// writeGrid prints a bordered table sized to its content. An empty grid
// prints the empty message under the headers.
func writeGrid(w io.Writer, sizer *layout.Sizer, left int, headers []string, cells [][]string, empty string) error {
	tw := &tableWriter{w: w, sizer: sizer, left: left}

	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = sizer.DisplayWidth(header)
	}
	for _, c := range cells {
		for i, value := range c {
			if n := sizer.DisplayWidth(value); n > widths[i] {
				widths[i] = n
			}
		}
	}
	if len(cells) == 0 {
		if n := sizer.DisplayWidth(empty); n > widths[left] {
			widths[left] = n
		}
	}

	tw.printBorder(widths, "top")
	tw.printRow(headers, widths)
	tw.printBorder(widths, "middle")
	if len(cells) == 0 {
		blank := make([]string, len(headers))
		blank[left] = empty
		tw.printRow(blank, widths)
	}
	for _, c := range cells {
		tw.printRow(c, widths)
	}
	tw.printBorder(widths, "bottom")
	return tw.err
}

func (t *tableWriter) print(s string) {
	if t.err != nil {
		return
	}
	_, t.err = io.WriteString(t.w, s)
}

// printBorder prints table borders (top, middle, bottom)
func (t *tableWriter) printBorder(widths []int, borderType string) {
	var left, middle, right string
	separator := "─"

	switch borderType {
	case "top":
		left, middle, right = "┌", "┬", "┐"
	case "middle":
		left, middle, right = "├", "┼", "┤"
	case "bottom":
		left, middle, right = "└", "┴", "┘"
	}

	var b strings.Builder
	b.WriteString(left)
	for i, width := range widths {
		b.WriteString(strings.Repeat(separator, width+2))
		if i < len(widths)-1 {
			b.WriteString(middle)
		}
	}
	b.WriteString(right)
	b.WriteString("\n")
	t.print(b.String())
}

// printRow pads every cell to its column width.
func (t *tableWriter) printRow(values []string, widths []int) {
	var b strings.Builder
	b.WriteString("│")
	for i, value := range values {
		value = t.sizer.Truncate(value, widths[i])
		fmt.Fprintf(&b, " %s │", t.sizer.PadString(value, widths[i], i == t.left))
	}
	b.WriteString("\n")
	t.print(b.String())
}
