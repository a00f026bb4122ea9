// Package tabular opens database/sql handles for the SQL ingestion source.
// SQLite goes through the pure-Go modernc driver and Postgres through pgx.
package tabular

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultSQLitePath  = "tenders.db"
	defaultPostgresDSN = "postgres://localhost/tenders?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the sql.Open hook for tests and returns a restore func.
func OverrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Open returns a pinged handle for driver (sqlite or postgres). An empty dsn
// falls back to tenders.db or a local Postgres database.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite"
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	case DriverPostgres:
		sqlDriver = "pgx"
		if dsn == "" {
			dsn = defaultPostgresDSN
		}
	default:
		return nil, fmt.Errorf("unknown sql driver %q", driver)
	}
	openMu.Lock()
	db, err := sqlOpen(sqlDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
