// Package archive moves one day of call recordings into the archive: each
// file is transcoded into the archive directory, its CDR row is pointed at
// the new name and the source file is removed. When the whole day succeeds
// the source directory is replaced by a symlink to the archive directory.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"recarchive/internal/daypath"
	"recarchive/internal/naming"
)

var (
	// ErrSourceMissing means the day's source directory does not exist.
	ErrSourceMissing = errors.New("source directory not found")
	// ErrUnsupported means a file carries neither codec extension.
	ErrUnsupported = errors.New("unsupported recording file")
)

// Encoder transcodes src into dst.
type Encoder interface {
	Encode(ctx context.Context, src, dst string) error
}

// Records rewrites the CDR rows that reference a recording.
type Records interface {
	RenameRecording(ctx context.Context, oldName, newName string) (int64, error)
	Close() error
}

// OpenRecords opens the database handle used for one directory.
type OpenRecords func(ctx context.Context) (Records, error)

// Codec names the source and target extensions, without dots.
type Codec struct {
	SourceExt string
	TargetExt string
	Naming    naming.Mode
}

type Service struct {
	Encoder Encoder
	Open    OpenRecords
	Codec   Codec
	Logger  *slog.Logger
}

// Result summarizes one ProcessDirectory call.
type Result struct {
	Source  string
	Archive string
	// AlreadyProcessed is set when the source was already a symlink.
	AlreadyProcessed bool
	// Converted holds the new names of files transcoded in this run.
	Converted []string
	// AlreadyConverted holds files that carried the target extension.
	AlreadyConverted []string
	// MissingRecords holds source names with no CDR row.
	MissingRecords []string
	Linked         bool
}

func NewService(enc Encoder, open OpenRecords, codec Codec, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Encoder: enc, Open: open, Codec: codec, Logger: logger}
}

// ProcessDirectory archives every file in paths.Source. The first failing
// file stops the run; files converted before it stay converted. The source
// directory is removed and linked only when every file succeeded.
func (s *Service) ProcessDirectory(ctx context.Context, paths daypath.Paths) (Result, error) {
	res := Result{Source: paths.Source, Archive: paths.Archive}

	if info, err := os.Lstat(paths.Source); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		s.Logger.Info("directory already processed", "path", paths.Source)
		res.AlreadyProcessed = true
		return res, nil
	}

	if err := s.ensureArchiveDir(paths.Archive); err != nil {
		s.Logger.Error("Could not create archive directory", "path", paths.Archive, "error", err)
		return res, err
	}

	records, err := s.Open(ctx)
	if err != nil {
		s.Logger.Error("Could not open CDR database", "error", err)
		return res, fmt.Errorf("open cdr database: %w", err)
	}
	defer func() {
		if err := records.Close(); err != nil {
			s.Logger.Warn("closing CDR database failed", "error", err)
		}
	}()

	entries, err := os.ReadDir(paths.Source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.Logger.Error("Path not found", "path", paths.Source)
			return res, fmt.Errorf("%w: %s", ErrSourceMissing, paths.Source)
		}
		s.Logger.Error("Could not list source directory", "path", paths.Source, "error", err)
		return res, fmt.Errorf("list %s: %w", paths.Source, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !entry.Type().IsRegular() {
			s.Logger.Warn("skipping non-regular entry", "path", filepath.Join(paths.Source, entry.Name()))
			continue
		}
		if err := s.ConvertFile(ctx, paths.Source, entry.Name(), paths.Archive, records, &res); err != nil {
			return res, err
		}
	}

	s.Logger.Info("Recordings processed successfully", "path", paths.Source,
		"converted", len(res.Converted), "already_converted", len(res.AlreadyConverted))

	if err := os.Remove(paths.Source); err != nil {
		s.Logger.Error("Could not remove source directory", "path", paths.Source, "error", err)
		return res, fmt.Errorf("remove source directory: %w", err)
	}
	if err := os.Symlink(paths.Archive, paths.Source); err != nil {
		s.Logger.Error("Could not create symbolic link", "link", paths.Source, "target", paths.Archive, "error", err)
		return res, fmt.Errorf("link %s -> %s: %w", paths.Source, paths.Archive, err)
	}
	s.Logger.Info("Created symbolic link", "link", paths.Source, "target", paths.Archive)
	res.Linked = true
	return res, nil
}

// ConvertFile archives one recording. A name already carrying the target
// extension is left alone. An encoder failure is returned and leaves the
// source file in place.
func (s *Service) ConvertFile(ctx context.Context, sourceDir, name, archiveDir string, records Records, res *Result) error {
	if naming.HasExt(name, s.Codec.TargetExt) {
		s.Logger.Info("already in target format", "file", name, "format", s.Codec.TargetExt)
		res.AlreadyConverted = append(res.AlreadyConverted, name)
		return nil
	}

	src := filepath.Join(sourceDir, name)
	newName := naming.Rename(name, s.Codec.SourceExt, s.Codec.TargetExt, s.Codec.Naming)
	if newName == name {
		s.Logger.Error("Could not convert: unexpected file type", "file", src)
		return fmt.Errorf("%w: %s", ErrUnsupported, src)
	}
	dst := filepath.Join(archiveDir, newName)

	if err := s.Encoder.Encode(ctx, src, dst); err != nil {
		s.Logger.Error(fmt.Sprintf("Could not convert %s to %s", src, s.Codec.TargetExt), "error", err)
		return fmt.Errorf("convert %s: %w", src, err)
	}

	missing, err := s.updateRecord(ctx, records, name, newName)
	if err != nil {
		s.Logger.Error("Database update failed", "file", name, "error", err)
		return err
	}
	if missing {
		res.MissingRecords = append(res.MissingRecords, name)
	}

	if err := os.Remove(src); err != nil {
		s.Logger.Error("Could not remove source file", "file", src, "error", err)
		return fmt.Errorf("remove %s: %w", src, err)
	}
	res.Converted = append(res.Converted, newName)
	return nil
}

// updateRecord rewrites the CDR row for name. A missing row is logged as an
// error but reported as success so the file still moves; only driver errors
// are returned.
func (s *Service) updateRecord(ctx context.Context, records Records, name, newName string) (missing bool, err error) {
	n, err := records.RenameRecording(ctx, name, newName)
	if err != nil {
		return false, err
	}
	if n == 0 {
		s.Logger.Error("Failed to update database for file", "file", name)
		return true, nil
	}
	s.Logger.Info("Updated database for file", "file", newName, "rows", n)
	return false, nil
}

func (s *Service) ensureArchiveDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("archive path %s exists and is not a directory", path)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	s.Logger.Info("Creating new archive directory", "path", path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	return nil
}
