package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStartsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "starts",
		Short: "List bot starts whose token matched no click",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			starts, err := s.repo.BotStarts(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUPDATE_ID\tRECEIVED_AT\tPAYLOAD\tUSER_ID\tUSERNAME\tNAME")
			for _, st := range starts {
				name := st.Identity.FirstName
				if st.Identity.LastName != "" {
					name += " " + st.Identity.LastName
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\t%s\n",
					st.ID,
					st.UpdateID,
					st.ReceivedAt.UTC().Format(time.RFC3339),
					st.Payload,
					st.Identity.UserID,
					st.Identity.Username,
					name,
				)
			}
			return tw.Flush()
		},
	}
}
