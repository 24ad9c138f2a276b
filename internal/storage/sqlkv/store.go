// Package sqlkv implements storage.Port as a two-column table in a SQL
// database. Postgres is reachable through lib/pq ("postgres") or pgx ("pgx");
// SQLite through the pure Go modernc driver ("sqlite").
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"ledgerlib/internal/storage"
)

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"

	defaultTable = "catalog_kv"
)

var sqlOpen = sql.Open

type dialect struct {
	valueType string
	get       string
	upsert    string
}

func dialectFor(driver, table string) (dialect, error) {
	switch driver {
	case DriverPostgres, DriverPgx:
		return dialect{
			valueType: "BYTEA",
			get:       fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, table),
			upsert: fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2)
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, table),
		}, nil
	case DriverSQLite:
		return dialect{
			valueType: "BLOB",
			get:       fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, table),
			upsert: fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?)
				ON CONFLICT (key) DO UPDATE SET value = excluded.value`, table),
		}, nil
	default:
		return dialect{}, fmt.Errorf("sqlkv: unsupported driver %q", driver)
	}
}

// Store persists key/value pairs in a single table.
type Store struct {
	db      *sql.DB
	driver  string
	dialect dialect
}

var (
	_ storage.Port    = (*Store)(nil)
	_ storage.Batcher = (*Store)(nil)
)

// Open connects with the named driver, verifies the connection and ensures the
// key/value table exists.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver == DriverSQLite {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	}
	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; keeps the file lock simple
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s, err := New(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool.
func New(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	d, err := dialectFor(driver, defaultTable)
	if err != nil {
		return nil, err
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value %s NOT NULL
	)`, defaultTable, d.valueType)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure kv table: %w", err)
	}
	return &Store{db: db, driver: driver, dialect: d}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %q: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, value); err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

// SetBatch applies all writes in one database transaction.
func (s *Store) SetBatch(ctx context.Context, writes []storage.Write) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.dialect.upsert)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, w := range writes {
		value := w.Value
		if value == nil {
			value = []byte{}
		}
		if _, err := stmt.ExecContext(ctx, w.Key, value); err != nil {
			return fmt.Errorf("upsert %q: %w", w.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Driver reports the database/sql driver in use.
func (s *Store) Driver() string { return s.driver }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }
