package store

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Migrate applies the goose migrations under dir in fsys. The PBX owns the
// production CDR schema; this is for scratch databases.
func Migrate(ctx context.Context, db *sql.DB, driver string, fsys fs.FS, dir string) error {
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(gooseDialect(driver)); err != nil {
		return err
	}
	goose.SetTableName("schema_migrations")
	return goose.UpContext(ctx, db, dir)
}

func gooseDialect(driver string) string {
	switch driver {
	case "pgx":
		return "postgres"
	case "sqlite3":
		return "sqlite3"
	default:
		return driver
	}
}
