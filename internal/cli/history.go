package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"recarchive/internal/runlock"
)

func NewHistoryCmd(opts *options) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent run summaries kept in redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cfg.Redis.URL == "" {
				return errors.New("run history needs redis.url")
			}
			locker, err := runlock.New(cfg.Redis.URL, cfg.Redis.LockTTL)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer locker.Close()

			lines, err := locker.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read run history: %w", err)
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}
