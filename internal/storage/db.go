package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the SQLite-backed analysis cache.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the cache database under dataDir and
// brings its schema up to date. WAL mode and foreign keys are set
// through the DSN.
func Open(dataDir string, logger *slog.Logger) (*DB, error) {
	dsn := filepath.Join(dataDir, "seville.db") + "?_journal_mode=WAL&_foreign_keys=ON"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to sqlite database: %w", err)
	}

	d := &DB{db: conn, logger: logger}
	if err := d.applyMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return d, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping reports whether the database is reachable.
func (d *DB) Ping() error {
	return d.db.Ping()
}

type migration struct {
	version int
	file    string
}

// applyMigrations runs every embedded migration whose version is not yet
// recorded in schema_migrations. Each migration commits atomically with
// its version row so a crash mid-migration cannot leave the bookkeeping
// out of step with the schema.
func (d *DB) applyMigrations() error {
	if _, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := d.appliedVersions()
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(applied)
	if err != nil {
		return err
	}

	for _, m := range pending {
		ddl, err := migrationsFS.ReadFile("migrations/" + m.file)
		if err != nil {
			return fmt.Errorf("load migration %s: %w", m.file, err)
		}

		d.logger.Info("applying schema migration", "version", m.version, "file", m.file)

		tx, err := d.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.file, err)
		}
		if _, err = tx.Exec(string(ddl)); err == nil {
			_, err = tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version)
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.file, err)
		}
	}
	return nil
}

// appliedVersions reads the set of already-recorded migration versions.
func (d *DB) appliedVersions() (map[int]bool, error) {
	rows, err := d.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return applied, nil
}

// pendingMigrations selects the unapplied *.sql entries, ordered by the
// numeric version prefix of their filename (e.g. "001_initial.sql").
func pendingMigrations(applied map[int]bool) ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	var pending []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if !applied[version] {
			pending = append(pending, migration{version: version, file: name})
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].version < pending[j].version
	})
	return pending, nil
}
