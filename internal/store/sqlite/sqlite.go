// Package sqlite is the SQLite-backed implementation of the store
// interfaces. The database is a single local file opened in WAL mode with
// one writer connection.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/fieldstack/maximo-mcp/internal/store"
	_ "modernc.org/sqlite"
)

// Compile-time check that DB satisfies store.Store.
var _ store.Store = (*DB)(nil)

// Schema files, named NNN_description.sql and applied in order. The
// version reached is tracked in sqlite's user_version header field.
//
//go:embed migrations/*.sql
var schemaFS embed.FS

// DB is the SQLite-backed store implementation.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at the given path and brings its schema up
// to date.
func New(ctx context.Context, path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{db: db}, nil
}

// applySchema runs every embedded schema file newer than the database's
// recorded version, each in its own transaction.
func applySchema(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	names, err := fs.Glob(schemaFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		ver := schemaVersion(name)
		if ver <= current {
			continue
		}

		ddl, err := schemaFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(ddl)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("exec %s: %w", name, err)
		}
		// PRAGMA takes no placeholders; ver comes from our own filenames.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", ver)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record schema version %d: %w", ver, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
		current = ver
	}
	return nil
}

// schemaVersion extracts the numeric prefix of a schema filename, or 0
// for a name that has none (which applySchema then skips as already run).
func schemaVersion(name string) int {
	prefix, _, ok := strings.Cut(path.Base(name), "_")
	if !ok {
		return 0
	}
	ver, err := strconv.Atoi(prefix)
	if err != nil {
		return 0
	}
	return ver
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
