package persistence

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one named schema change. Name doubles as the ledger key, so it
// must be unique and stable across releases (NNNN_description.sql).
type Migration struct {
	Name string
	SQL  string
}

// LoadMigrations reads every *.sql file under dir in fsys, sorted by name.
// SQL is embedded at build time so binaries stay self-contained.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		contents, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Name: strings.TrimSuffix(entry.Name(), ".sql"),
			SQL:  string(contents),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Name < migrations[j].Name })
	if len(migrations) == 0 {
		return nil, fmt.Errorf("no migrations found under %s", dir)
	}
	return migrations, nil
}

// Migrator tracks and applies a fixed migration source against one database.
// The ledger table (schema_migrations) is created on demand.
type Migrator struct {
	pool   *pgxpool.Pool
	source []Migration
}

// NewMigrator builds a migrator for pool. Both arguments are required.
func NewMigrator(pool *pgxpool.Pool, source []Migration) *Migrator {
	if pool == nil {
		panic("migrator requires pool")
	}
	if len(source) == 0 {
		panic("migrator requires a migration source")
	}
	return &Migrator{pool: pool, source: source}
}

const createLedgerSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Ping verifies the target database is reachable.
func (m *Migrator) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// Applied returns the ledger entries in application order.
func (m *Migrator) Applied(ctx context.Context) ([]string, error) {
	if _, err := m.pool.Exec(ctx, createLedgerSQL); err != nil {
		return nil, fmt.Errorf("ensure migration ledger: %w", err)
	}

	rows, err := m.pool.Query(ctx, `SELECT name FROM schema_migrations ORDER BY applied_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied = append(applied, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// Pending returns source migrations not yet recorded in the ledger, in order.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		seen[name] = struct{}{}
	}

	var pending []Migration
	for _, mig := range m.source {
		if _, ok := seen[mig.Name]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Apply runs every pending migration inside a single transaction and records
// each in the ledger. It returns the names applied, in order. An empty return
// with nil error means the database was already up to date.
func (m *Migrator) Apply(ctx context.Context) ([]string, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	applied := make([]string, 0, len(pending))
	for _, mig := range pending {
		// Each file runs whole over the simple protocol. Splitting on ';' would
		// corrupt dollar-quoted function bodies and literals.
		if _, err := tx.Exec(ctx, mig.SQL, pgx.QueryExecModeSimpleProtocol); err != nil {
			return nil, fmt.Errorf("apply migration %s: %w", mig.Name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, mig.Name); err != nil {
			return nil, fmt.Errorf("record migration %s: %w", mig.Name, err)
		}
		applied = append(applied, mig.Name)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit migrations: %w", err)
	}
	return applied, nil
}
