package commands

import (
	"fmt"

	"github.com/penwyp/go-scholar-sync/internal/application/tracker"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Copy legacy process-local data into the shared directory",
		Long: `Copies entity and history data from this machine's process-local store into
the shared directory. It runs at most once; the host loop also runs it on start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(s *session, host *tracker.Host) error {
				outcome, err := s.app.Migration().RunOnce()
				if err != nil {
					return err
				}
				host.Load()
				fmt.Fprintf(cmd.OutOrStdout(), "Migration: %s (%d scholars, %d snapshots)\n",
					outcome, len(host.ListEntities()), host.History().Count())
				return nil
			})
		},
	}
}
