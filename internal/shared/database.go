package shared

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const memoryPath = ":memory:"

// busyTimeoutMillis bounds how long a writer waits on a locked database file.
const busyTimeoutMillis = 5000

// dsn appends go-sqlite3 connection pragmas to path.
func dsn(path string) string {
	params := fmt.Sprintf("_busy_timeout=%d&_foreign_keys=on", busyTimeoutMillis)
	if path != memoryPath {
		params += "&_journal_mode=WAL"
	}
	return path + "?" + params
}

// OpenDatabase opens and pings the SQLite database described by cfg.
//
// Pool limits come from cfg; zero leaves the driver default. An in-memory
// database is pinned to a single connection, since each connection to
// ":memory:" would otherwise see its own empty schema.
func OpenDatabase(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	switch {
	case cfg.Path == memoryPath:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Path, err)
	}
	return db, nil
}

// OpenMemoryDatabase opens a private in-memory database with the schema applied.
func OpenMemoryDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := OpenDatabase(ctx, DatabaseConfig{Path: memoryPath})
	if err != nil {
		return nil, err
	}
	if _, err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
