// Package cli holds the recarchive command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recarchive/internal/app"
	"recarchive/internal/config"
)

type options struct {
	configPath string
	dayOffset  int
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "recarchive",
		Short:         "Archive yesterday's call recordings and mail a report",
		Long:          "recarchive transcodes one day of call recordings into the archive, points the CDR rows at the new files, links the old day directory to the archive and mails the run log.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNightly(cmd, opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("RA_CONFIG"), "path to the YAML config file")
	addDayOffsetFlag(rootCmd, opts)

	rootCmd.AddCommand(NewRunCmd(opts))
	rootCmd.AddCommand(NewDoctorCmd(opts))
	rootCmd.AddCommand(NewSendTestCmd(opts))
	rootCmd.AddCommand(NewHistoryCmd(opts))
	return rootCmd
}

func NewRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one day of recordings (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNightly(cmd, opts)
		},
	}
	addDayOffsetFlag(cmd, opts)
	return cmd
}

func addDayOffsetFlag(cmd *cobra.Command, opts *options) {
	cmd.Flags().IntVar(&opts.dayOffset, "day-offset", 0, "days before today to process (overrides day_offset)")
}

func runNightly(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer application.Close()
	application.Stderr = cmd.ErrOrStderr()
	return application.RunNightly(cmd.Context())
}

// loadConfig layers file, environment and flags, then validates the result.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	if f := cmd.Flags().Lookup("day-offset"); f != nil && f.Changed {
		cfg.DayOffset = opts.dayOffset
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
