package commands

import (
	"fmt"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/application/tracker"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/presentation/formatter"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		from   string
		to     string
		output string
		width  int
	)
	cmd := &cobra.Command{
		Use:   "history [scholar-id]",
		Short: "Show or export recorded citation snapshots",
		Long: `Prints the citation snapshots of one scholar, or of every scholar when no id
is given. The csv and json outputs can be read back with "import".

Examples:
  go-scholar-sync history abc123 --from 2024-01-01
  go-scholar-sync history -o csv > history.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(s *session, host *tracker.Host) error {
				now := s.app.Clock.Now()
				lower, upper := time.Time{}, now
				var err error
				if from != "" {
					if lower, err = parseBound(from, now, false); err != nil {
						return err
					}
				}
				if to != "" {
					if upper, err = parseBound(to, now, true); err != nil {
						return err
					}
				}
				if upper.Before(lower) {
					return fmt.Errorf("--to %s is before --from %s", to, from)
				}

				var records []model.HistoryRecord
				if len(args) == 1 {
					if _, ok := host.Entity(args[0]); !ok {
						return fmt.Errorf("%w: %s", tracker.ErrUnknownEntity, args[0])
					}
					records = host.History().Query(args[0], lower, upper)
				} else {
					for _, r := range host.History().All() {
						if !r.Timestamp.Before(lower) && !r.Timestamp.After(upper) {
							records = append(records, r)
						}
					}
				}
				return formatter.WriteHistory(cmd.OutOrStdout(), output, records, outputWidth(cmd.OutOrStdout(), width))
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Earliest snapshot (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "Latest snapshot (YYYY-MM-DD or RFC3339, default now)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, csv)")
	cmd.Flags().IntVar(&width, "width", 0, "Table width (0 = terminal width)")
	return cmd
}

func newChangesCmd(opts *rootOptions) *cobra.Command {
	var (
		since  string
		days   int
		output string
		width  int
	)
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "List recent citation changes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			return opts.withHost(func(s *session, host *tracker.Host) error {
				now := s.app.Clock.Now()
				start := now.AddDate(0, 0, -days)
				if since != "" {
					var err error
					if start, err = parseBound(since, now, false); err != nil {
						return err
					}
				}
				return formatter.WriteChanges(cmd.OutOrStdout(), output, host.RecentChanges(start), outputWidth(cmd.OutOrStdout(), width))
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Start of the feed (YYYY-MM-DD or RFC3339, overrides --days)")
	cmd.Flags().IntVarP(&days, "days", "d", 7, "Look back this many days")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, csv)")
	cmd.Flags().IntVar(&width, "width", 0, "Table width (0 = terminal width)")
	return cmd
}
