// Package app wires configuration into one nightly archive run.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"recarchive/internal/archive"
	"recarchive/internal/config"
	"recarchive/internal/daypath"
	"recarchive/internal/encoder"
	"recarchive/internal/mailaddr"
	"recarchive/internal/naming"
	"recarchive/internal/report"
	"recarchive/internal/runlock"
	"recarchive/internal/runlog"
	"recarchive/internal/store"
)

type App struct {
	Config config.Config
	// From is the resolved report sender.
	From        string
	Now         func() time.Time
	Codec       archive.Codec
	Encoder     archive.Encoder
	OpenRecords archive.OpenRecords
	Locker      *runlock.Locker
	Sender      report.Sender
	// Stderr receives the console copy of the run log. Nil means os.Stderr.
	Stderr io.Writer
}

// Summary is the one-line record of a finished run kept in the run history.
type Summary struct {
	RunID            string    `json:"run_id"`
	Day              string    `json:"day"`
	Finished         time.Time `json:"finished"`
	AlreadyProcessed bool      `json:"already_processed,omitempty"`
	Converted        int       `json:"converted"`
	AlreadyConverted int       `json:"already_converted,omitempty"`
	MissingRecords   int       `json:"missing_records,omitempty"`
	Linked           bool      `json:"linked"`
	Error            string    `json:"error,omitempty"`
}

// New builds an App from a validated configuration.
func New(cfg config.Config) (*App, error) {
	from, err := resolveFrom(cfg)
	if err != nil {
		return nil, err
	}

	encPath, err := encoder.Find(cfg.Encoder.Path)
	if err != nil {
		// A missing encoder surfaces as a conversion failure in the run log.
		encPath = cfg.Encoder.Path
	}

	mode, err := naming.ParseMode(cfg.Codec.Naming)
	if err != nil {
		return nil, err
	}

	codec := archive.Codec{
		SourceExt: cfg.Codec.SourceExt,
		TargetExt: cfg.Codec.TargetExt,
		Naming:    mode,
	}

	opts, err := store.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	locker, err := runlock.New(cfg.Redis.URL, cfg.Redis.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	return &App{
		Config:      cfg,
		From:        from,
		Now:         time.Now,
		Codec:       codec,
		Encoder:     encoder.New(encPath, cfg.Encoder.Args, cfg.Encoder.Timeout),
		OpenRecords: openStore(opts),
		Locker:      locker,
		Sender:      report.NewSMTPSender(cfg),
	}, nil
}

func (a *App) Close() error {
	if a.Locker != nil {
		return a.Locker.Close()
	}
	return nil
}

// RunNightly archives one day and mails the run log. Processing failures end
// up in the report; only a failed delivery is returned.
func (a *App) RunNightly(ctx context.Context) error {
	runID := uuid.NewString()
	logs := runlog.New(runlog.Options{
		Level:  a.Config.LogLevel(),
		Stderr: a.Stderr,
		File:   a.Config.Log.File,
		Syslog: a.Config.Log.Syslog,
	})
	defer logs.Close()
	logger := logs.Logger()

	day := daypath.Resolve(a.now(), a.Config.DayOffset)
	paths := daypath.Build(a.Config.Paths.SourceRoot, a.Config.Paths.ArchiveRoot, day)
	logger.Debug("starting archive run", "run_id", runID, "day", day.String(), "source", paths.Source)

	res, err := a.archiveDay(ctx, logger, runID, day, paths)
	if err != nil {
		runlog.Critical(logger, "Error processing directory", "path", paths.Source, "error", err)
	}
	a.recordRun(ctx, logger, runID, day, res, err)

	msg := report.Compose(report.Input{
		From:  a.From,
		To:    a.Config.Mail.To,
		RunID: runID,
		Now:   a.now(),
		Log:   logs.Text(),
	})
	if err := a.Sender.Send(ctx, msg); err != nil {
		logs.Durable().Error("Could not send report", "run_id", runID, "to", msg.To, "error", err,
			"subject", msg.Subject, "report", msg.Body)
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}

func (a *App) archiveDay(ctx context.Context, logger *slog.Logger, runID string, day daypath.Day, paths daypath.Paths) (archive.Result, error) {
	release, err := a.Locker.Acquire(ctx, day.String(), runID)
	switch {
	case errors.Is(err, runlock.ErrHeld):
		logger.Error("Directory is being processed by another run", "path", paths.Source, "day", day.String())
		return archive.Result{Source: paths.Source, Archive: paths.Archive}, nil
	case err != nil:
		logger.Warn("run lock unavailable, continuing unguarded", "error", err)
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("releasing run lock failed", "error", err)
			}
		}()
	}

	svc := archive.NewService(a.Encoder, a.OpenRecords, a.Codec, logger)
	return svc.ProcessDirectory(ctx, paths)
}

func (a *App) recordRun(ctx context.Context, logger *slog.Logger, runID string, day daypath.Day, res archive.Result, runErr error) {
	sum := Summary{
		RunID:            runID,
		Day:              day.String(),
		Finished:         a.now().UTC(),
		AlreadyProcessed: res.AlreadyProcessed,
		Converted:        len(res.Converted),
		AlreadyConverted: len(res.AlreadyConverted),
		MissingRecords:   len(res.MissingRecords),
		Linked:           res.Linked,
	}
	if runErr != nil {
		sum.Error = runErr.Error()
	}
	logger.Debug("run summary", "converted", sum.Converted, "missing_records", sum.MissingRecords, "linked", sum.Linked)

	if !a.Locker.Enabled() {
		return
	}
	line, err := json.Marshal(sum)
	if err != nil {
		return
	}
	if err := a.Locker.Record(context.WithoutCancel(ctx), string(line)); err != nil {
		logger.Warn("could not record run history", "error", err)
	}
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func openStore(opts store.Options) archive.OpenRecords {
	return func(ctx context.Context) (archive.Records, error) {
		st, err := store.Open(opts)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	}
}

// resolveFrom returns mail.from, or <hostname>@<mail.from_domain> when unset.
func resolveFrom(cfg config.Config) (string, error) {
	if cfg.Mail.From != "" {
		return cfg.Mail.From, nil
	}
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w", err)
	}
	from, err := mailaddr.HostSender(host, cfg.Mail.FromDomain)
	if err != nil {
		return "", fmt.Errorf("sender address: %w", err)
	}
	return from, nil
}
