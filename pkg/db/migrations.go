package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Schema returns the transcript schema migrations shipped with the binary.
func Schema() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// migrationLockID is the advisory lock held while migrating, so a server and a
// watcher starting together do not apply the same file twice.
const migrationLockID int64 = 0x70656e66

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var errNilPool = errors.New("pool is nil")

// Migration is one .sql file. Version is the file name without the extension.
type Migration struct {
	Version string
	Name    string
}

// MigrationResult lists the versions applied and already present.
type MigrationResult struct {
	Applied []string
	Skipped []string
}

// MigrationStatusEntry is one row of a status report. AppliedAt is nil while pending.
type MigrationStatusEntry struct {
	Version   string     `json:"version" yaml:"version"`
	Name      string     `json:"name" yaml:"name"`
	AppliedAt *time.Time `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
}

// MigrationStatus splits migrations into applied, pending and drift (applied
// in the database but not shipped in fsys).
type MigrationStatus struct {
	Applied []MigrationStatusEntry `json:"applied" yaml:"applied"`
	Pending []MigrationStatusEntry `json:"pending" yaml:"pending"`
	Drift   []MigrationStatusEntry `json:"drift" yaml:"drift"`
}

// RunMigrations applies the pending files in fsys in version order, each in
// its own transaction, and stops at the first failure. The returned result
// lists what was applied before the failure.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) (*MigrationResult, error) {
	migrations, err := findMigrations(fsys)
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{}
	err = withMigrationConn(ctx, pool, true, func(conn *pgxpool.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			if _, ok := applied[m.Version]; ok {
				result.Skipped = append(result.Skipped, m.Version)
				continue
			}
			if err := applyMigration(ctx, conn, fsys, m); err != nil {
				return fmt.Errorf("migration %s failed: %w", m.Version, err)
			}
			result.Applied = append(result.Applied, m.Version)
		}
		return nil
	})
	return result, err
}

// GetMigrationStatus compares the files in fsys with the applied versions.
func GetMigrationStatus(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) (*MigrationStatus, error) {
	migrations, err := findMigrations(fsys)
	if err != nil {
		return nil, err
	}

	var status *MigrationStatus
	err = withMigrationConn(ctx, pool, false, func(conn *pgxpool.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		status = buildStatus(migrations, applied)
		return nil
	})
	return status, err
}

// withMigrationConn runs fn on one pooled connection after making sure the
// tracking table exists, holding the migration lock when lock is set.
func withMigrationConn(ctx context.Context, pool *pgxpool.Pool, lock bool, fn func(*pgxpool.Conn) error) error {
	if pool == nil {
		return errNilPool
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if lock {
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("failed to take migration lock: %w", err)
		}
		defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID) // nolint: errcheck
	}

	if _, err := conn.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return fn(conn)
}

// findMigrations lists the top-level .sql files in fsys sorted by version.
func findMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(path.Ext(e.Name()), ".sql") {
			continue
		}
		migrations = append(migrations, Migration{Version: normalizeVersion(e.Name()), Name: e.Name()})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// normalizeVersion strips a case-insensitive .sql suffix so versions recorded
// with and without the extension compare equal.
func normalizeVersion(v string) string {
	if len(v) > 4 && strings.EqualFold(v[len(v)-4:], ".sql") {
		return v[:len(v)-4]
	}
	return v
}

func appliedVersions(ctx context.Context, conn *pgxpool.Conn) (map[string]time.Time, error) {
	rows, err := conn.Query(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var version string
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, err
		}
		applied[normalizeVersion(version)] = at
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, conn *pgxpool.Conn, fsys fs.FS, m Migration) error {
	content, err := fs.ReadFile(fsys, m.Name)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return errors.New("migration file is empty")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit(ctx)
}

func buildStatus(migrations []Migration, applied map[string]time.Time) *MigrationStatus {
	status := &MigrationStatus{
		Applied: []MigrationStatusEntry{},
		Pending: []MigrationStatusEntry{},
		Drift:   []MigrationStatusEntry{},
	}

	shipped := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		shipped[m.Version] = true
		entry := MigrationStatusEntry{Version: m.Version, Name: m.Name}
		if at, ok := applied[m.Version]; ok {
			entry.AppliedAt = &at
			status.Applied = append(status.Applied, entry)
		} else {
			status.Pending = append(status.Pending, entry)
		}
	}

	for version, at := range applied {
		if shipped[version] {
			continue
		}
		at := at
		status.Drift = append(status.Drift, MigrationStatusEntry{Version: version, Name: version + ".sql", AppliedAt: &at})
	}
	sort.Slice(status.Drift, func(i, j int) bool { return status.Drift[i].Version < status.Drift[j].Version })
	return status
}
