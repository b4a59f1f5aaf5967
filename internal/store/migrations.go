package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var sqliteMigrations embed.FS

// migrate runs, in one transaction, every embedded script numbered above the
// database's user_version and then stores the highest number applied.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	names, err := fs.Glob(sqliteMigrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("sqlite store: list migrations: %w", err)
	}
	sort.Strings(names)

	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite store: read schema version: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	version := current
	for _, name := range names {
		n, err := schemaVersion(name)
		if err != nil {
			return err
		}
		if n <= current {
			continue
		}
		script, err := sqliteMigrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("sqlite store: read %s: %w", path.Base(name), err)
		}
		if _, err := tx.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("sqlite store: schema version %d: %w", n, err)
		}
		version = n
	}
	if version == current {
		return nil
	}

	// PRAGMA takes no bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("sqlite store: set schema version %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite store: commit schema version %d: %w", version, err)
	}
	return nil
}

// schemaVersion reads the leading number of a script name such as 0001_init.sql.
func schemaVersion(name string) (int, error) {
	base := path.Base(name)
	prefix, _, _ := strings.Cut(base, "_")
	n, err := strconv.Atoi(prefix)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("sqlite store: migration %s must start with a positive number", base)
	}
	return n, nil
}
