// Package encodertest provides a stand-in encoder binary for tests.
package encodertest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// script copies its second-to-last argument to its last argument, failing
// with exit code 3 when the source name contains "fail".
const script = `#!/bin/sh
prev=""
last=""
for a in "$@"; do
	prev="$last"
	last="$a"
done
case "$prev" in
*fail*)
	echo "Could not find RIFF header in $prev" >&2
	exit 3
	;;
esac
cp "$prev" "$last"
`

// Script writes the fake encoder into a temp dir and returns its path.
// Tests are skipped where /bin/sh is unavailable.
func Script(t testing.TB) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake encoder needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "fake-lame")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755), "write fake encoder")
	return path
}
