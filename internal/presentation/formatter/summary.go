package formatter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// GrowthWindow is the change of one scholar over one lookback window.
type GrowthWindow struct {
	Days   int
	Result model.GrowthResult
}

// GrowthSummary describes one scholar's growth over several windows.
type GrowthSummary struct {
	ID        string
	Name      string
	Citations *int
	Windows   []GrowthWindow
	// LastSnapshot is the time of the newest history record, if any.
	LastSnapshot *time.Time
}

// SummaryFormatter renders a growth report.
type SummaryFormatter struct{}

func NewSummaryFormatter() *SummaryFormatter {
	return &SummaryFormatter{}
}

func (f *SummaryFormatter) Format(w io.Writer, summary GrowthSummary) error {
	var b strings.Builder

	name := summary.Name
	if name == "" {
		name = summary.ID
	}
	fmt.Fprintf(&b, "%s (%s)\n", name, summary.ID)
	b.WriteString(strings.Repeat("=", 40) + "\n")

	if summary.Citations == nil {
		b.WriteString("Not fetched yet\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%-12s %12s\n", "Citations:", util.FormatCount(*summary.Citations))
	for _, window := range summary.Windows {
		label := fmt.Sprintf("%dd growth:", window.Days)
		fmt.Fprintf(&b, "%-12s %12s  %8s  (from %s)\n",
			label,
			util.FormatDelta(window.Result.Delta),
			util.FormatPercent(window.Result.Percentage),
			util.FormatCount(window.Result.PreviousValue),
		)
	}

	if summary.LastSnapshot != nil {
		fmt.Fprintf(&b, "%-12s %s\n", "Snapshot:", summary.LastSnapshot.Format(dateLayout))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
