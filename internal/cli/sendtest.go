package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"recarchive/internal/app"
	"recarchive/internal/report"
)

func NewSendTestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send-test",
		Short: "Send a test report through the configured mail server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}
			defer application.Close()

			msg := report.Compose(report.Input{
				From:  application.From,
				To:    cfg.Mail.To,
				RunID: uuid.NewString(),
				Now:   time.Now(),
				Log:   "This is a test report from recarchive.\n",
			})
			if err := application.Sender.Send(cmd.Context(), msg); err != nil {
				return fmt.Errorf("send test report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent test report to %s\n", cfg.Mail.To)
			return nil
		},
	}
}
