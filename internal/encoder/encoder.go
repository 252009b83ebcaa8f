// Package encoder runs the external audio encoder (lame by default) for one
// recording at a time.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned by Find when no usable encoder binary exists.
var ErrNotFound = errors.New("encoder not found")

// ExitError reports an encoder run that exited non-zero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("encoder exited with code %d", e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// Encoder invokes <Path> [Args...] <src> <dst>.
type Encoder struct {
	Path string
	Args []string
	// Timeout bounds a single encode. Zero means no limit.
	Timeout time.Duration
}

// New returns an Encoder for the binary at path.
func New(path string, args []string, timeout time.Duration) *Encoder {
	return &Encoder{Path: path, Args: args, Timeout: timeout}
}

// Encode transcodes src into dst. Output goes to a temporary sibling of dst
// that is renamed into place on success, so a failed encode leaves no target
// file behind.
func (e *Encoder) Encode(ctx context.Context, src, dst string) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	ext := filepath.Ext(dst)
	tmpPath := strings.TrimSuffix(dst, ext) + ".converting" + ext

	args := append(append([]string{}, e.Args...), src, tmpPath)
	cmd := exec.CommandContext(ctx, e.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmpPath)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		if ctx.Err() != nil {
			return fmt.Errorf("encode %s: %w", src, ctx.Err())
		}
		return fmt.Errorf("encode %s: %w", src, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, dst, err)
	}
	return nil
}

// Version runs the encoder with --version and returns the first output line.
func (e *Encoder) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, e.Path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version: %w", e.Path, err)
	}
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s, nil
}

// Find resolves the encoder binary from, in order, the configured value, the
// RA_ENCODER environment variable, and PATH lookup of the configured name.
func Find(configured string) (string, error) {
	var candidates []string
	if configured != "" {
		candidates = append(candidates, configured)
	}
	if env := os.Getenv("RA_ENCODER"); env != "" {
		candidates = append(candidates, env)
	}
	for _, c := range candidates {
		if strings.ContainsRune(c, os.PathSeparator) {
			if info, err := os.Stat(c); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
				return c, nil
			}
			continue
		}
		if p, err := exec.LookPath(c); err == nil {
			return p, nil
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no encoder configured", ErrNotFound)
	}
	return "", fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(candidates, ", "))
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
