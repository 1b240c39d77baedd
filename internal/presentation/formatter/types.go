package formatter

import (
	"io"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/model"
)

// Row is one scholar line in a listing.
type Row struct {
	Position    int        `json:"position"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Pinned      bool       `json:"pinned"`
	Citations   *int       `json:"citations"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Weekly      *int       `json:"weekly_growth"`
	Monthly     *int       `json:"monthly_growth"`
	Quarterly   *int       `json:"quarterly_growth"`
	Fetching    bool       `json:"fetching,omitempty"`
}

// Formatter renders rows to w.
type Formatter interface {
	Format(w io.Writer, rows []Row) error
}

// RowsFromProjections numbers projections in the order given. pinned may be nil.
func RowsFromProjections(projections []model.WidgetProjection, pinned map[string]bool) []Row {
	rows := make([]Row, 0, len(projections))
	for i, p := range projections {
		rows = append(rows, Row{
			Position:    i + 1,
			ID:          p.EntityID,
			Name:        p.DisplayName,
			Pinned:      pinned[p.EntityID],
			Citations:   p.MetricValue,
			LastUpdated: p.LastUpdated,
			Weekly:      p.WeeklyGrowth,
			Monthly:     p.MonthlyGrowth,
			Quarterly:   p.QuarterlyGrowth,
		})
	}
	return rows
}

// PinnedSet collects the ids of pinned entities.
func PinnedSet(entities []model.TrackedEntity) map[string]bool {
	set := make(map[string]bool)
	for _, e := range entities {
		if e.Pinned {
			set[e.ID] = true
		}
	}
	return set
}

// New returns the formatter for an output name.
func New(output string, now func() time.Time, width int) (Formatter, bool) {
	switch output {
	case "table", "":
		return NewTableFormatter(now, width), true
	case "json":
		return NewJSONFormatter(), true
	case "csv":
		return NewCSVFormatter(), true
	}
	return nil, false
}
