package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/application/tracker"
	"github.com/penwyp/go-scholar-sync/internal/presentation/formatter"
	"github.com/penwyp/go-scholar-sync/internal/presentation/layout"
	"github.com/spf13/cobra"
)

var errFetchInProgress = errors.New("a fetch for this scholar is already in progress (use --force to commit anyway)")

func newTrackCmd(opts *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "track <scholar-id>",
		Short: "Start tracking a scholar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(_ *session, host *tracker.Host) error {
				if err := host.Track(args[0], name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func newCommitCmd(opts *rootOptions) *cobra.Command {
	var (
		name  string
		at    string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "commit <scholar-id> <citations>",
		Short: "Record a fetched citation count",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid citation count %q: %w", args[1], err)
			}
			return opts.withHost(func(s *session, host *tracker.Host) error {
				ts, err := parseTimestamp(at, s.app.Clock.Now())
				if err != nil {
					return err
				}
				acquired, err := host.BeginFetch(args[0])
				if err != nil {
					return err
				}
				if !acquired && !force {
					return errFetchInProgress
				}
				if err := host.CommitFetchResult(args[0], value, name, ts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Committed %s = %d\n", args[0], value)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name reported by the source")
	cmd.Flags().StringVar(&at, "at", "", "Fetch time (RFC3339, default now)")
	cmd.Flags().BoolVar(&force, "force", false, "Commit even when another fetch holds the lease")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		width  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked scholars, pinned first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(s *session, host *tracker.Host) error {
				f, ok := formatter.New(output, s.app.Clock.Now, outputWidth(cmd.OutOrStdout(), width))
				if !ok {
					return fmt.Errorf("unsupported output format %q (table, json, csv)", output)
				}
				return f.Format(cmd.OutOrStdout(), hostRows(host))
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, csv)")
	cmd.Flags().IntVar(&width, "width", 0, "Table width (0 = terminal width)")
	return cmd
}

func newPinCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pin <scholar-id>",
		Short: "Pin a scholar to the top of the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(_ *session, host *tracker.Host) error {
				return host.Pin(args[0])
			})
		},
	}
}

func newUnpinCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unpin <scholar-id>",
		Short: "Unpin a scholar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(_ *session, host *tracker.Host) error {
				return host.Unpin(args[0])
			})
		},
	}
}

func newMoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <scholar-id> <position>",
		Short: "Move a scholar to a 1-based position in the display order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil || position < 1 {
				return fmt.Errorf("invalid position %q", args[1])
			}
			return opts.withHost(func(_ *session, host *tracker.Host) error {
				return host.Move(args[0], position-1)
			})
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <scholar-id>",
		Aliases: []string{"rm"},
		Short:   "Stop tracking a scholar and drop its history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(_ *session, host *tracker.Host) error {
				if err := host.Remove(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

// hostRows lists the host's projections, marking scholars whose fetch is running.
func hostRows(host *tracker.Host) []formatter.Row {
	rows := formatter.RowsFromProjections(host.Projections(), formatter.PinnedSet(host.ListEntities()))
	for i := range rows {
		rows[i].Fetching = host.IsFetching(rows[i].ID)
	}
	return rows
}

func parseTimestamp(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339): %w", value, err)
	}
	return ts, nil
}

// parseBound accepts RFC3339 or a plain date, read in now's location. A plain
// date as an upper bound covers the whole day.
func parseBound(value string, now time.Time, upper bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, value, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want YYYY-MM-DD or RFC3339)", value)
	}
	if upper {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}

func outputWidth(w io.Writer, requested int) int {
	if requested > 0 {
		return requested
	}
	if f, ok := w.(*os.File); ok {
		return layout.DetectSizer(f).Width
	}
	return layout.DetectSizer(nil).Width
}
