// Package migration applies embedded schema migrations across the shared
// database and every tenant that runs on its own database. Application never
// panics or propagates per-database errors; each target yields a
// MigrationResult and the caller decides what a partial failure means.
package migration

import (
	"time"

	"github.com/google/uuid"
)

// MigrationResult records the outcome of migrating one database. TenantID is
// nil for the shared database.
type MigrationResult struct {
	TenantID          *uuid.UUID    `json:"tenantId,omitempty"`
	TenantName        string        `json:"tenantName,omitempty"`
	Success           bool          `json:"success"`
	// Skipped marks a tenant that needed no work of its own (runs on the
	// shared database). Distinct from a zero-pending success.
	Skipped           bool          `json:"skipped,omitempty"`
	ErrorMessage      string        `json:"errorMessage,omitempty"`
	MigrationsCount   int           `json:"migrationsCount"`
	AppliedMigrations []string      `json:"appliedMigrations,omitempty"`
	Duration          time.Duration `json:"duration"`
	CompletedAt       time.Time     `json:"completedAt"`
}

// forTenant stamps tenant identity onto a result produced by the runner.
func (r MigrationResult) forTenant(tenantID uuid.UUID, name string) MigrationResult {
	id := tenantID
	r.TenantID = &id
	r.TenantName = name
	return r
}

// MigrationStatus describes where one database stands relative to the
// embedded migration source. An unreachable database reports
// DatabaseExists=false and HasPendingMigrations=true: from the operator's
// point of view an unreachable target is behind until proven otherwise.
type MigrationStatus struct {
	DatabaseExists       bool     `json:"databaseExists"`
	AppliedMigrations    []string `json:"appliedMigrations,omitempty"`
	PendingMigrations    []string `json:"pendingMigrations,omitempty"`
	LastAppliedMigration string   `json:"lastAppliedMigration,omitempty"`
	HasPendingMigrations bool     `json:"hasPendingMigrations"`
}

func successResult(started time.Time, applied []string) MigrationResult {
	return MigrationResult{
		Success:           true,
		MigrationsCount:   len(applied),
		AppliedMigrations: applied,
		Duration:          time.Since(started),
		CompletedAt:       time.Now().UTC(),
	}
}

func failureResult(started time.Time, message string) MigrationResult {
	return MigrationResult{
		ErrorMessage: message,
		Duration:     time.Since(started),
		CompletedAt:  time.Now().UTC(),
	}
}

func unreachableStatus() MigrationStatus {
	return MigrationStatus{HasPendingMigrations: true}
}
