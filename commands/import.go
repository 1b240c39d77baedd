package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/penwyp/go-scholar-sync/internal/application/tracker"
	"github.com/penwyp/go-scholar-sync/internal/core/history"
	"github.com/spf13/cobra"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import citation history from a json or csv file",
		Long: `Merges snapshots from a file written by "history -o json|csv" or by older app
versions. Snapshots within a minute of an existing one are skipped, and
scholars the file mentions are tracked if they are not already.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			batch, err := history.Decode(f, format)
			if err != nil {
				return err
			}

			return opts.withHost(func(_ *session, host *tracker.Host) error {
				n, err := host.ImportHistory(batch.Records)
				if err != nil {
					return err
				}

				added := 0
				for _, r := range batch.Records {
					if _, ok := host.Entity(r.EntityID); ok {
						continue
					}
					if err := host.Track(r.EntityID, batch.Names[r.EntityID]); err != nil {
						return err
					}
					added++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d snapshots (%d duplicates, %d unreadable), %d new scholars\n",
					n, len(batch.Records)-n, batch.Skipped, added)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "File format (json, csv; default from the extension)")
	return cmd
}
