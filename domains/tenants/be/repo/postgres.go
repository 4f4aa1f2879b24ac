package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultAuditLimit = 50

// PostgresAuditStore writes the migration audit trail to the shared database.
type PostgresAuditStore struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditStore constructs an audit store over pool.
func NewPostgresAuditStore(pool *pgxpool.Pool) *PostgresAuditStore {
	if pool == nil {
		panic("audit store requires pool")
	}
	return &PostgresAuditStore{pool: pool}
}

// Record inserts every entry in one transaction. Recording is all or nothing:
// a partially written run ledger is worse than none.
func (s *PostgresAuditStore) Record(ctx context.Context, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, entry := range entries {
		if _, err := tx.Exec(ctx, `
            INSERT INTO migration_audit (tenant_id, succeeded, applied, detail, recorded_at)
            VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
			entry.TenantID, entry.Succeeded, entry.Applied, entry.Detail, entry.RecordedAt,
		); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit audit entries: %w", err)
	}
	return nil
}

// Recent returns the newest entries across all targets.
func (s *PostgresAuditStore) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	rows, err := s.pool.Query(ctx, `
        SELECT tenant_id, succeeded, applied, COALESCE(detail, ''), recorded_at
        FROM migration_audit
        ORDER BY recorded_at DESC, audit_id DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// RecentForTenant returns the newest entries for one tenant.
func (s *PostgresAuditStore) RecentForTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	rows, err := s.pool.Query(ctx, `
        SELECT tenant_id, succeeded, applied, COALESCE(detail, ''), recorded_at
        FROM migration_audit
        WHERE tenant_id = $1
        ORDER BY recorded_at DESC, audit_id DESC
        LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tenant audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]AuditEntry, error) {
	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		if err := rows.Scan(&entry.TenantID, &entry.Succeeded, &entry.Applied, &entry.Detail, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// Ensure interface compliance.
var _ AuditStore = (*PostgresAuditStore)(nil)
