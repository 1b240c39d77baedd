package commands

import (
	"fmt"
	"strings"

	"github.com/penwyp/go-scholar-sync/internal/application/tracker"
	"github.com/penwyp/go-scholar-sync/internal/core/notify"
	"github.com/penwyp/go-scholar-sync/internal/util"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where data lives and how much of it there is",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(s *session, host *tracker.Host) error {
				var b strings.Builder
				line := func(label, value string) {
					fmt.Fprintf(&b, "%-18s %s\n", label+":", value)
				}

				stores := s.app.Stores
				if stores.File != nil {
					line("Shared directory", stores.File.Dir())
					keys, err := stores.File.Keys()
					if err != nil {
						return fmt.Errorf("list shared keys: %w", err)
					}
					line("Stored keys", fmt.Sprintf("%d", len(keys)))
					line("Cached blobs", fmt.Sprintf("%d", stores.File.GetCacheStats()))
				} else {
					line("Shared directory", "unavailable, using process-local storage")
				}

				line("Scholars", fmt.Sprintf("%d", len(host.ListEntities())))
				line("Snapshots", util.FormatCount(host.History().Count()))

				marker := notify.ReadSyncMarker(s.app.Stores.Shared, s.app.Log)
				if marker.Version == 0 {
					line("Sync version", "0 (never written)")
				} else {
					age := s.app.Clock.Now().Sub(marker.UpdatedAt)
					line("Sync version", fmt.Sprintf("%d (%s ago)", marker.Version, util.FormatAge(age)))
				}

				_, err := fmt.Fprint(cmd.OutOrStdout(), b.String())
				return err
			})
		},
	}
}
