// Package repo persists migration run outcomes. The audit trail lives in the
// shared database so one place answers "what happened during the last rollout"
// across the whole fleet.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/migration"
)

// AuditEntry is one recorded migration outcome. TenantID is nil for the
// shared database.
type AuditEntry struct {
	TenantID   *uuid.UUID
	Succeeded  bool
	Applied    int
	Detail     string
	RecordedAt time.Time
}

// AuditStore records and reads migration run outcomes.
type AuditStore interface {
	Record(ctx context.Context, entries []AuditEntry) error
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
	RecentForTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]AuditEntry, error)
}

// EntriesFromResults converts a migration run into audit entries. Failed runs
// keep their error message as the detail; successful runs note the count.
func EntriesFromResults(results []migration.MigrationResult) []AuditEntry {
	entries := make([]AuditEntry, 0, len(results))
	for _, result := range results {
		entry := AuditEntry{
			TenantID:   result.TenantID,
			Succeeded:  result.Success,
			Applied:    result.MigrationsCount,
			RecordedAt: result.CompletedAt,
		}
		if !result.Success {
			entry.Detail = result.ErrorMessage
		}
		entries = append(entries, entry)
	}
	return entries
}
