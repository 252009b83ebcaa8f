package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recarchive/internal/archive"
	"recarchive/internal/config"
	"recarchive/internal/daypath"
	"recarchive/internal/encoder"
	"recarchive/internal/encoder/encodertest"
	"recarchive/internal/mailaddr"
	"recarchive/internal/naming"
	"recarchive/internal/report"
	"recarchive/internal/store"
	"recarchive/internal/store/storetest"
)

type captureSender struct {
	sent []report.Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg report.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type harness struct {
	app    *App
	sender *captureSender
	st     *store.Store
	paths  daypath.Paths
}

func newHarness(t *testing.T, files ...string) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SourceRoot = filepath.Join(root, "monitor")
	cfg.Paths.ArchiveRoot = filepath.Join(root, "nas")
	cfg.Mail.To = "me@mydomain.com"

	now := time.Date(2026, 10, 16, 2, 0, 0, 0, time.Local)
	paths := daypath.Build(cfg.Paths.SourceRoot, cfg.Paths.ArchiveRoot, daypath.Resolve(now, cfg.DayOffset))
	if files != nil {
		require.NoError(t, os.MkdirAll(paths.Source, 0o755))
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(paths.Source, f), []byte("RIFF"+f), 0o644))
	}

	st, opts := storetest.NewCDR(t)
	sender := &captureSender{}
	a := &App{
		Config:      cfg,
		From:        "pbx01@mydomain.com",
		Now:         func() time.Time { return now },
		Codec:       archive.Codec{SourceExt: "wav", TargetExt: "mp3", Naming: naming.ModeExtension},
		Encoder:     encoder.New(encodertest.Script(t), nil, 0),
		OpenRecords: openStore(opts),
		Sender:      sender,
		Stderr:      io.Discard,
	}
	return &harness{app: a, sender: sender, st: st, paths: paths}
}

func (h *harness) report(t *testing.T) report.Message {
	t.Helper()
	require.Len(t, h.sender.sent, 1, "expected one report")
	return h.sender.sent[0]
}

func TestRunNightlyArchivesDay(t *testing.T) {
	h := newHarness(t, "rec1.wav", "rec2.wav")
	storetest.InsertCall(t, h.st, "1.1", "rec1.wav")
	storetest.InsertCall(t, h.st, "2.1", "rec2.wav")

	require.NoError(t, h.app.RunNightly(context.Background()))

	msg := h.report(t)
	assert.Equal(t, "pbx01@mydomain.com: Success processing recordings", msg.Subject)
	assert.Equal(t, "me@mydomain.com", msg.To)
	assert.Contains(t, msg.Body, "Recordings processed successfully")

	target, err := os.Readlink(h.paths.Source)
	require.NoError(t, err, "source should be a symlink")
	assert.Equal(t, h.paths.Archive, target)
	for id, want := range map[string]string{"1.1": "rec1.mp3", "2.1": "rec2.mp3"} {
		assert.Equal(t, want, storetest.Recording(t, h.st, id), "row %s", id)
		_, err := os.Stat(filepath.Join(h.paths.Archive, want))
		assert.NoError(t, err, "archive should contain %s", want)
	}
}

func TestRunNightlyReportsEncoderFailure(t *testing.T) {
	h := newHarness(t, "rec1.wav", "rec2-fail.wav", "rec3.wav")
	storetest.InsertCall(t, h.st, "1.1", "rec1.wav")
	storetest.InsertCall(t, h.st, "2.1", "rec2-fail.wav")

	require.NoError(t, h.app.RunNightly(context.Background()), "processing failures must not fail the run")

	msg := h.report(t)
	assert.Equal(t, "pbx01@mydomain.com: Error processing recordings", msg.Subject)
	for _, want := range []string{"level=CRITICAL", "Could not convert", "RIFF header"} {
		assert.Contains(t, msg.Body, want)
	}

	info, err := os.Lstat(h.paths.Source)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "source must remain a directory")
	_, err = os.Stat(filepath.Join(h.paths.Source, "rec3.wav"))
	assert.NoError(t, err, "rec3.wav must be untouched")
	assert.Equal(t, "rec2-fail.wav", storetest.Recording(t, h.st, "2.1"))
	assert.Equal(t, "rec1.mp3", storetest.Recording(t, h.st, "1.1"))
}

func TestRunNightlyMissingDirectory(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.app.RunNightly(context.Background()))
	msg := h.report(t)
	assert.True(t, strings.HasSuffix(msg.Subject, "Error processing recordings"), "unexpected subject %q", msg.Subject)
	assert.Contains(t, msg.Body, "Path not found")
}

func TestRunNightlyMailFailure(t *testing.T) {
	h := newHarness(t, "rec1.wav")
	h.sender.err = errors.New("535 authentication failed")

	err := h.app.RunNightly(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
	_, err = os.Readlink(h.paths.Source)
	assert.NoError(t, err, "archiving should complete before delivery")
}

func TestResolveFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Mail.From = "asterisk@mydomain.com"
	from, err := resolveFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, "asterisk@mydomain.com", from)

	cfg.Mail.From = ""
	cfg.Mail.FromDomain = "MyDomain.com"
	host, err := os.Hostname()
	if err != nil {
		t.Skipf("no hostname: %v", err)
	}
	want, wantErr := mailaddr.HostSender(host, "mydomain.com")
	if wantErr != nil {
		t.Skipf("hostname %q is not a valid local part", host)
	}
	from, err = resolveFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, want, from)
	assert.True(t, strings.HasSuffix(from, "@mydomain.com"), "expected host sender at from domain, got %q", from)
}
