package commands

import (
	"fmt"
	"strconv"

	"github.com/penwyp/go-scholar-sync/internal/application/tracker"
	"github.com/penwyp/go-scholar-sync/internal/presentation/formatter"
	"github.com/spf13/cobra"
)

func newWidgetCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Companion process commands",
	}
	cmd.AddCommand(
		newWidgetShowCmd(opts),
		newWidgetCheckCmd(opts),
		newWidgetCommitCmd(opts),
	)
	return cmd
}

func newWidgetShowCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		width  int
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the widget snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCompanion(func(s *session, c *tracker.Companion) error {
				f, ok := formatter.New(output, s.app.Clock.Now, outputWidth(cmd.OutOrStdout(), width))
				if !ok {
					return fmt.Errorf("unsupported output format %q (table, json, csv)", output)
				}
				c.Check()
				return f.Format(cmd.OutOrStdout(), formatter.RowsFromProjections(c.Snapshot(), nil))
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, csv)")
	cmd.Flags().IntVar(&width, "width", 0, "Table width (0 = terminal width)")
	return cmd
}

func newWidgetCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether the shared data changed since the last check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCompanion(func(_ *session, c *tracker.Companion) error {
				if c.Check() {
					fmt.Fprintln(cmd.OutOrStdout(), "changed")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "unchanged")
				}
				return nil
			})
		},
	}
}

func newWidgetCommitCmd(opts *rootOptions) *cobra.Command {
	var (
		name  string
		at    string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "commit <scholar-id> <citations>",
		Short: "Record a citation count fetched by the widget",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid citation count %q: %w", args[1], err)
			}
			return opts.withCompanion(func(s *session, c *tracker.Companion) error {
				ts, err := parseTimestamp(at, s.app.Clock.Now())
				if err != nil {
					return err
				}
				acquired, err := c.BeginFetch(args[0])
				if err != nil {
					return err
				}
				if !acquired && !force {
					return errFetchInProgress
				}
				if err := c.CommitFetchResult(args[0], value, name, ts); err != nil {
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
