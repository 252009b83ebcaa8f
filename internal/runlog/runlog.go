// Package runlog collects the leveled log lines of one archive run so they can
// be mailed in the run report, while echoing them to stderr and an optional
// JSON log file.
package runlog

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

// LevelCritical marks failures that abort a whole run.
const LevelCritical = slog.LevelError + 4

const timeLayout = "2006-01-02 15:04:05"

// Options configures a Collector.
type Options struct {
	Level slog.Level
	// Stderr receives a text copy of every line. Nil means os.Stderr.
	Stderr io.Writer
	// File is an optional JSON log file, opened for append.
	File string
	// Syslog also sends durable records to the local syslog daemon.
	Syslog bool
}

// Collector owns the in-memory run log. Create one per run.
type Collector struct {
	logger  *slog.Logger
	durable *slog.Logger

	mu  sync.Mutex
	buf bytes.Buffer

	closers []io.Closer
}

// New builds a Collector and the handlers behind it. Failing to open the log
// file or syslog is not fatal; the run falls back to the remaining outputs.
func New(opts Options) *Collector {
	c := &Collector{}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: replaceAttr}

	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, handlerOpts),
		slog.NewTextHandler(bufferWriter{c}, handlerOpts),
	}
	var durable []slog.Handler

	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.New(handlers[0]).Warn("failed to open log file, continuing without it", "error", err, "file", opts.File)
		} else {
			fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: replaceLevel})
			handlers = append(handlers, fileHandler)
			durable = append(durable, fileHandler)
			c.closers = append(c.closers, file)
		}
	}
	if opts.Syslog {
		w, err := openSyslog()
		if err != nil {
			slog.New(handlers[0]).Warn("syslog unavailable", "error", err)
		} else {
			durable = append(durable, slog.NewTextHandler(w, &slog.HandlerOptions{ReplaceAttr: dropTime}))
			c.closers = append(c.closers, w)
		}
	}
	// stderr is the last resort when nothing durable is configured.
	if len(durable) == 0 {
		durable = append(durable, handlers[0])
	}

	c.logger = slog.New(slogmulti.Fanout(handlers...))
	c.durable = slog.New(slogmulti.Fanout(durable...))
	return c
}

// Logger returns the logger whose output lands in the run log.
func (c *Collector) Logger() *slog.Logger {
	return c.logger
}

// Durable returns a logger that bypasses the run log and writes only to the
// log file and syslog. Use it when the run log itself cannot be delivered.
func (c *Collector) Durable() *slog.Logger {
	return c.durable
}

// Text returns everything logged so far.
func (c *Collector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Close releases the log file and syslog connection.
func (c *Collector) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

// ContainsError reports whether text carries an error level marker.
func ContainsError(text string) bool {
	return strings.Contains(text, "level=ERROR") || strings.Contains(text, "level=CRITICAL")
}

// Critical logs msg at LevelCritical.
func Critical(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelCritical, msg, args...)
}

type bufferWriter struct{ c *Collector }

func (w bufferWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.buf.Write(p)
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.String(slog.TimeKey, a.Value.Time().Format(timeLayout))
	}
	return replaceLevel(groups, a)
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
			return slog.String(slog.LevelKey, "CRITICAL")
		}
	}
	return a
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return replaceLevel(groups, a)
}
