package commands

import (
	"fmt"

	"github.com/penwyp/go-scholar-sync/internal/application/tracker"
	"github.com/penwyp/go-scholar-sync/internal/core/constants"
	"github.com/penwyp/go-scholar-sync/internal/presentation/formatter"
	"github.com/spf13/cobra"
)

func newGrowthCmd(opts *rootOptions) *cobra.Command {
	var days []int
	cmd := &cobra.Command{
		Use:   "growth <scholar-id>",
		Short: "Show citation growth over lookback windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, d := range days {
				if d <= 0 {
					return fmt.Errorf("window must be a positive number of days, got %d", d)
				}
			}
			return opts.withHost(func(_ *session, host *tracker.Host) error {
				e, ok := host.Entity(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", tracker.ErrUnknownEntity, args[0])
				}

				summary := formatter.GrowthSummary{
					ID:        e.ID,
					Name:      e.DisplayName,
					Citations: e.MetricValue,
				}
				if last, ok := host.History().Latest(e.ID); ok {
					summary.LastSnapshot = &last.Timestamp
				}
				for _, d := range days {
					result, ok := host.GrowthDetail(e.ID, d)
					if !ok {
						break
					}
					summary.Windows = append(summary.Windows, formatter.GrowthWindow{Days: d, Result: result})
				}
				return formatter.NewSummaryFormatter().Format(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().IntSliceVarP(&days, "days", "d",
		[]int{constants.WeeklyWindowDays, constants.MonthlyWindowDays, constants.QuarterlyWindowDays},
		"Lookback windows in days")
	return cmd
}
