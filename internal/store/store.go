package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"recarchive/internal/config"
)

// Options selects the CDR database and the column holding recording names.
type Options struct {
	Driver string
	DSN    string
	Table  string
	Column string
}

// Store is the single connection a run uses to rewrite CDR rows.
type Store struct {
	db        *sql.DB
	driver    string
	renameSQL string
}

// OptionsFromConfig builds Options, assembling a DSN from the host fields when
// database.dsn is empty.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	dsn := cfg.Database.DSN
	if dsn == "" {
		var err error
		dsn, err = buildDSN(cfg)
		if err != nil {
			return Options{}, err
		}
	}
	return Options{
		Driver: cfg.Database.Driver,
		DSN:    dsn,
		Table:  cfg.Database.Table,
		Column: cfg.Database.Column,
	}, nil
}

func buildDSN(cfg config.Config) (string, error) {
	db := cfg.Database
	switch db.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = db.User
		mc.Passwd = db.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(db.Host, db.Port, 3306)
		mc.DBName = db.Name
		// Report matched rather than changed rows so a zero count means
		// the recording has no CDR row.
		mc.ClientFoundRows = true
		return mc.FormatDSN(), nil
	case "pgx":
		u := url.URL{
			Scheme: "postgres",
			Host:   hostPort(db.Host, db.Port, 5432),
			Path:   "/" + db.Name,
		}
		if db.User != "" {
			u.User = url.UserPassword(db.User, db.Password)
		}
		return u.String(), nil
	case "sqlite3":
		if db.Name == "" {
			return "", errors.New("sqlite3 needs database.name or database.dsn")
		}
		return db.Name, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

func hostPort(host string, port, fallback int) string {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = fallback
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Open connects to the CDR database. The pool is capped at one connection.
func Open(opts Options) (*Store, error) {
	if opts.DSN == "" {
		return nil, errors.New("missing database dsn")
	}
	if opts.Table == "" || opts.Column == "" {
		return nil, errors.New("missing cdr table or column")
	}
	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{
		db:        db,
		driver:    opts.Driver,
		renameSQL: renameStatement(opts.Driver, opts.Table, opts.Column),
	}, nil
}

// renameStatement builds the UPDATE for driver. table and column are
// identifiers validated by config.Validate.
func renameStatement(driver, table, column string) string {
	if driver == "pgx" {
		return fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, table, column, column)
	}
	return fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`, table, column, column)
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RenameRecording points every CDR row referencing oldName at newName and
// returns the number of rows affected. Zero is not an error here.
func (s *Store) RenameRecording(ctx context.Context, oldName, newName string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.renameSQL, newName, oldName)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", oldName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for %s: %w", oldName, err)
	}
	return n, nil
}
