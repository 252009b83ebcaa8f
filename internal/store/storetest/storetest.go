// Package storetest builds throwaway CDR databases for tests.
package storetest

import (
	"context"
	"embed"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"recarchive/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewCDR creates a migrated sqlite CDR database in a temp dir and returns an
// open Store on it plus the Options used, so tests can reopen it.
func NewCDR(t testing.TB) (*store.Store, store.Options) {
	t.Helper()
	opts := store.Options{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "asteriskcdrdb.sqlite"),
		Table:  "cdr",
		Column: "recordingfile",
	}
	st, err := store.Open(opts)
	require.NoError(t, err, "open store")
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, store.Migrate(context.Background(), st.DB(), opts.Driver, migrations, "migrations"), "apply migrations")
	return st, opts
}

// InsertCall adds a CDR row referencing recording.
func InsertCall(t testing.TB, st *store.Store, uniqueID, recording string) {
	t.Helper()
	_, err := st.DB().ExecContext(context.Background(),
		`INSERT INTO cdr (src, dst, uniqueid, recordingfile) VALUES ('100', '200', ?, ?)`,
		uniqueID, recording)
	require.NoError(t, err, "insert cdr row")
}

// Recording returns the recording column for uniqueID.
func Recording(t testing.TB, st *store.Store, uniqueID string) string {
	t.Helper()
	var name string
	err := st.DB().QueryRowContext(context.Background(),
		`SELECT recordingfile FROM cdr WHERE uniqueid = ?`, uniqueID).Scan(&name)
	require.NoError(t, err, "query cdr row %s", uniqueID)
	return name
}
