package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/clicktrail/internal/service"
)

func newExportCommand(e *env) *cobra.Command {
	var (
		withSource bool
		outPath    string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the click export as CSV",
		Long: `Write every click, oldest first, in the same CSV format as GET /admin/csv.

Example:
  trackctl export --source --out clicks.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}

			n, err := service.NewExporter(s.repo).WriteCSV(cmd.Context(), w, service.ExportOptions{
				IncludeSource: withSource,
				Limit:         limit,
			})
			if err != nil {
				return err
			}

			s.logger.Info("export written",
				slog.Int("rows", n),
				slog.String("out", outPath),
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withSource, "source", false, "append ip, user_agent, referrer, device and traffic_source columns")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&limit, "limit", 0, "only the most recent N clicks (0 means all)")
	return cmd
}
