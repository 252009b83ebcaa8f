package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recarchive/internal/encoder/encodertest"
)

func TestEncodeWritesTarget(t *testing.T) {
	enc := New(encodertest.Script(t), []string{"--preset", "standard"}, 0)
	dir := t.TempDir()
	src := filepath.Join(dir, "rec1.wav")
	dst := filepath.Join(dir, "out", "rec1.mp3")
	require.NoError(t, os.WriteFile(src, []byte("RIFF"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))

	require.NoError(t, enc.Encode(context.Background(), src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))
	_, err = os.Stat(filepath.Join(dir, "out", "rec1.converting.mp3"))
	assert.True(t, os.IsNotExist(err), "temporary output should be renamed away")
}

func TestEncodeNonZeroExit(t *testing.T) {
	enc := New(encodertest.Script(t), nil, 0)
	dir := t.TempDir()
	src := filepath.Join(dir, "fail.wav")
	dst := filepath.Join(dir, "fail.mp3")
	require.NoError(t, os.WriteFile(src, []byte("junk"), 0o644))

	err := enc.Encode(context.Background(), src, dst)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Error(), "RIFF header")

	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err), "no target should exist after a failed encode")
}

func TestEncodeMissingBinary(t *testing.T) {
	enc := New(filepath.Join(t.TempDir(), "no-such-lame"), nil, time.Second)
	err := enc.Encode(context.Background(), "a.wav", filepath.Join(t.TempDir(), "a.mp3"))
	require.Error(t, err)
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestFind(t *testing.T) {
	script := encodertest.Script(t)

	got, err := Find(script)
	require.NoError(t, err)
	assert.Equal(t, script, got)

	t.Setenv("RA_ENCODER", script)
	got, err = Find(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, script, got)

	t.Setenv("RA_ENCODER", "")
	_, err = Find("definitely-not-an-encoder-binary")
	assert.ErrorIs(t, err, ErrNotFound)
}
