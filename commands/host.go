package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/penwyp/go-scholar-sync/internal/application/tracker"
	"github.com/penwyp/go-scholar-sync/internal/presentation/formatter"
	"github.com/penwyp/go-scholar-sync/internal/util"
	"github.com/spf13/cobra"
)

func newHostCmd(opts *rootOptions) *cobra.Command {
	var (
		quiet bool
		width int
	)
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Run the host loop",
		Long: `Runs the long-lived host process. Changes written by the widget are folded
into the model as soon as a signal arrives, and at the latest on the next poll.

Sending SIGCONT (e.g. after "fg") forces an immediate resync.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(s *session, host *tracker.Host) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				out := cmd.OutOrStdout()
				table := formatter.NewTableFormatter(s.app.Clock.Now, outputWidth(out, width))
				render := func() {
					if quiet {
						return
					}
					if err := table.Format(out, hostRows(host)); err != nil {
						s.app.Log.Warn("render failed", util.Field{Key: "error", Value: err})
					}
				}

				runner := s.app.Runner(host, tracker.RunnerOptions{
					Foreground: foregroundSignals(ctx),
					OnUpdate: func(changedIDs []string) {
						if !quiet {
							fmt.Fprintf(out, "Updated: %s\n", strings.Join(changedIDs, ", "))
						}
						render()
					},
				})

				render()
				return runner.Run(ctx)
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the table on updates")
	cmd.Flags().IntVar(&width, "width", 0, "Table width (0 = terminal width)")
	return cmd
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(s *session, host *tracker.Host) error {
				if _, err := s.app.Migration().RunOnce(); err != nil {
					return err
				}
				host.Load()
				result, err := host.Reconcile()
				if err != nil {
					return err
				}
				if !result.Changed {
					fmt.Fprintln(cmd.OutOrStdout(), "Up to date")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated: %s\n", strings.Join(result.ChangedIDs, ", "))
				return nil
			})
		},
	}
}

// foregroundSignals turns SIGCONT into resync requests. Requests coalesce
// while one is pending.
func foregroundSignals(ctx context.Context) <-chan struct{} {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGCONT)

	foreground := make(chan struct{}, 1)
	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sig:
				select {
				case foreground <- struct{}{}:
				default:
				}
			}
		}
	}()
	return foreground
}
