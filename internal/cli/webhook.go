package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/clicktrail/internal/telegram"
)

func newSetWebhookCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set-webhook",
		Short: "Register BASE_URL/tg/webhook with Telegram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd, false)
			if err != nil {
				return err
			}

			cfg := s.cfg
			var missing []error
			for _, r := range []struct{ name, value string }{
				{"BOT_TOKEN", cfg.BotToken},
				{"BASE_URL", cfg.BaseURL},
				{"WEBHOOK_SECRET", cfg.WebhookSecret},
			} {
				if r.value == "" {
					missing = append(missing, fmt.Errorf("%s is required", r.name))
				}
			}
			if len(missing) > 0 {
				return errors.Join(missing...)
			}

			client := telegram.NewClient(cfg.TelegramAPIURL, cfg.BotToken, s.logger)
			resp, err := client.RegisterWebhook(cmd.Context(), cfg.BaseURL, cfg.WebhookSecret)
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("telegram refused setWebhook (%d): %s", resp.ErrorCode, resp.Description)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "webhook set to %s%s: %s\n", cfg.BaseURL, telegram.WebhookPath, resp.Description)
			return nil
		},
	}
}
