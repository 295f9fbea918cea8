package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/clicktrail/internal/auth"
)

func newHashTokenCommand() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-token [secret]",
		Short: "Print the bcrypt hash of an admin token for ADMIN_TOKEN",
		Long: `Print the bcrypt hash of an admin token. Put the hash in ADMIN_TOKEN and keep
the plain token for requests. Without an argument the token is read from the
first line of stdin, which keeps it out of shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token from stdin: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}

			hashed, err := auth.HashSecret(secret, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", auth.DefaultCost, "bcrypt cost")
	return cmd
}
