package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/clicktrail/internal/service"
)

func newPurgeCommand(e *env) *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete abandoned pending clicks",
		Long: `Delete pending clicks created before now minus --older-than. Claimed clicks
are never touched. A start that later arrives for a purged token is treated as
unknown.

Example:
  trackctl purge --older-than 720h --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := service.NewHousekeeper(s.repo, s.logger).PurgePending(cmd.Context(), olderThan, dryRun)
			if err != nil {
				return err
			}

			verb := "deleted"
			if res.DryRun {
				verb = "would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d pending clicks created before %s\n",
				verb, res.Matched, res.Cutoff.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age threshold, e.g. 720h")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count matching clicks without deleting them")
	_ = cmd.MarkFlagRequired("older-than")
	return cmd
}
