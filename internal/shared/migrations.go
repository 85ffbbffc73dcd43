package shared

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// migration is one schema version: the script that applies it and the one that reverts it.
type migration struct {
	version int
	up      string
	down    string
}

// loadMigrations parses sql/NNNN_<name>_{up,down}.sql into versions sorted ascending.
func loadMigrations() ([]migration, error) {
	names, err := fs.Glob(migrationFiles, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	byVersion := make(map[int]*migration)
	for _, name := range names {
		base := strings.TrimPrefix(name, "sql/")
		prefix, _, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}

		content, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", base, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{version: version}
			byVersion[version] = m
		}
		switch {
		case strings.HasSuffix(base, "_up.sql"):
			m.up = string(content)
		case strings.HasSuffix(base, "_down.sql"):
			m.down = string(content)
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" || m.down == "" {
			return nil, fmt.Errorf("migration %04d needs both up and down scripts", m.version)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b migration) int { return cmp.Compare(a.version, b.version) })
	return migrations, nil
}

// RunMigrations applies every pending migration and returns how many ran.
//
// Each version runs in its own transaction together with its schema_migrations
// row, so a failing script leaves earlier versions applied and nothing of its own.
func RunMigrations(ctx context.Context, db *sql.DB) (int, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		ran, err := inTx(ctx, db, func(tx *sql.Tx) (bool, error) {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.version,
			).Scan(&exists); err != nil {
				return false, err
			}
			if exists {
				return false, nil
			}
			if _, err := tx.ExecContext(ctx, m.up); err != nil {
				return false, err
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version)
			return err == nil, err
		})
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration %04d: %w", m.version, err)
		}
		if ran {
			applied++
		}
	}
	return applied, nil
}

// RollbackMigration reverts the newest applied migration and returns its version.
// It returns [ErrNotFound] when nothing is applied.
func RollbackMigration(ctx context.Context, db *sql.DB) (int, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, err
	}

	var version int
	_, err = inTx(ctx, db, func(tx *sql.Tx) (bool, error) {
		err := tx.QueryRowContext(ctx,
			"SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1",
		).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%w: no applied migrations", ErrNotFound)
		}
		if err != nil {
			return false, err
		}

		i := slices.IndexFunc(migrations, func(m migration) bool { return m.version == version })
		if i < 0 {
			return false, fmt.Errorf("%w: migration %04d has no scripts", ErrNotFound, version)
		}
		if _, err := tx.ExecContext(ctx, migrations[i].down); err != nil {
			return false, err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", version)
		return err == nil, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to roll back: %w", err)
	}
	return version, nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) (bool, error)) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	changed, err := fn(tx)
	if err != nil {
		return false, err
	}
	return changed, tx.Commit()
}
