package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"recarchive/internal/config"
	"recarchive/internal/encoder"
	"recarchive/internal/report"
	"recarchive/internal/runlock"
	"recarchive/internal/store"
)

var errSkipped = errors.New("skipped")

func NewDoctorCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the encoder, database, mail server and redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if failed := doctor(ctx, cmd.OutOrStdout(), cfg); failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func doctor(ctx context.Context, w io.Writer, cfg config.Config) int {
	checks := []struct {
		Name string
		Fn   func() (string, error)
	}{
		{"source_root", func() (string, error) { return dirCheck(cfg.Paths.SourceRoot) }},
		{"archive_root", func() (string, error) { return dirCheck(cfg.Paths.ArchiveRoot) }},
		{"encoder", func() (string, error) { return encoderCheck(ctx, cfg) }},
		{"database", func() (string, error) { return "", pingDatabase(ctx, cfg) }},
		{"smtp", func() (string, error) { return "", report.NewSMTPSender(cfg).Check(ctx) }},
		{"redis", func() (string, error) { return redisCheck(ctx, cfg) }},
	}
	failed := 0
	for _, check := range checks {
		detail, err := check.Fn()
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(w, "%s: SKIP (%s)\n", check.Name, detail)
		case err != nil:
			fmt.Fprintf(w, "%s: FAIL (%v)\n", check.Name, err)
			failed++
		case detail != "":
			fmt.Fprintf(w, "%s: OK (%s)\n", check.Name, detail)
		default:
			fmt.Fprintf(w, "%s: OK\n", check.Name)
		}
	}
	return failed
}

func dirCheck(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	return path, nil
}

func encoderCheck(ctx context.Context, cfg config.Config) (string, error) {
	path, err := encoder.Find(cfg.Encoder.Path)
	if err != nil {
		return "", err
	}
	version, err := encoder.New(path, nil, 0).Version(ctx)
	if err != nil || version == "" {
		return path, nil
	}
	return path + ", " + version, nil
}

func pingDatabase(ctx context.Context, cfg config.Config) error {
	opts, err := store.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	st, err := store.Open(opts)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Ping(ctx)
}

func redisCheck(ctx context.Context, cfg config.Config) (string, error) {
	if cfg.Redis.URL == "" {
		return "not configured", errSkipped
	}
	locker, err := runlock.New(cfg.Redis.URL, cfg.Redis.LockTTL)
	if err != nil {
		return "", err
	}
	defer locker.Close()
	return "", locker.Ping(ctx)
}
