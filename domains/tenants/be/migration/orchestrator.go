package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/metadata"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/resolver"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/dbrouting"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/secrets"
)

// enumerationPageSize is how many tenants each listing call asks for.
const enumerationPageSize = 100

// migrationRunner is the per-database execution surface the orchestrator
// drives. Satisfied by *Runner.
type migrationRunner interface {
	ApplyMigrations(ctx context.Context, connString string) MigrationResult
	Status(ctx context.Context, connString string) MigrationStatus
}

// connectionResolver is the migration-grade resolution surface. Satisfied by
// *resolver.Resolver.
type connectionResolver interface {
	ResolveSafely(ctx context.Context, tenant *metadata.TenantDetails, requireCustomerAPI bool) (resolver.ConnectionResult, error)
}

// tenantLister enumerates tenants by strategy. Satisfied by *metadata.Store;
// failures surface as empty pages, never as errors.
type tenantLister interface {
	GetAllPaginated(ctx context.Context, strategy dbrouting.Strategy, size, page int) metadata.Page
}

// Orchestrator runs migrations across the whole fleet: the shared database
// first, then every tenant on its own database, sequentially. Tenant failures
// are isolated; a shared-database failure aborts the run because every shared
// tenant would otherwise migrate against a broken baseline.
type Orchestrator struct {
	runner   migrationRunner
	resolver connectionResolver
	tenants  tenantLister
	creds    secrets.Store
	log      *zap.Logger
}

// NewOrchestrator builds an orchestrator. All dependencies are required.
func NewOrchestrator(runner migrationRunner, res connectionResolver, tenants tenantLister, creds secrets.Store, log *zap.Logger) *Orchestrator {
	if runner == nil {
		panic("orchestrator requires migration runner")
	}
	if res == nil {
		panic("orchestrator requires connection resolver")
	}
	if tenants == nil {
		panic("orchestrator requires tenant lister")
	}
	if creds == nil {
		panic("orchestrator requires credentials store")
	}
	if log == nil {
		panic("orchestrator requires logger")
	}
	return &Orchestrator{runner: runner, resolver: res, tenants: tenants, creds: creds, log: log}
}

// MigrateAll migrates the shared database, then every Dedicated and External
// tenant in sequence. The shared pass gates the rest: if it fails, the run
// stops there. Cancelling ctx stops the run between tenants; the tenant being
// migrated at that moment finishes or fails on its own.
func (o *Orchestrator) MigrateAll(ctx context.Context) []MigrationResult {
	results := []MigrationResult{o.MigrateSharedOnly(ctx)}
	if !results[0].Success {
		o.log.Error("shared database migration failed, aborting tenant migrations",
			zap.String("error", results[0].ErrorMessage))
		return results
	}

	isolated := o.collectIsolatedTenants(ctx)
	o.log.Info("migrating isolated tenants", zap.Int("count", len(isolated)))

	for _, tenant := range isolated {
		if err := ctx.Err(); err != nil {
			o.log.Warn("migration run cancelled",
				zap.Int("completed", len(results)-1),
				zap.Int("remaining", len(isolated)-(len(results)-1)))
			break
		}
		results = append(results, o.migrateTenant(ctx, tenant))
	}
	return results
}

// MigrateSharedOnly migrates just the shared database.
func (o *Orchestrator) MigrateSharedOnly(ctx context.Context) MigrationResult {
	started := time.Now()

	creds, err := o.creds.GetSharedDatabaseCredentials(ctx)
	if err != nil {
		return failureResult(started, fmt.Sprintf("shared database credentials: %v", err))
	}
	if err := creds.Validate(); err != nil {
		return failureResult(started, fmt.Sprintf("shared database credentials: %v", err))
	}
	return o.runner.ApplyMigrations(ctx, creds.AdminConnectionString)
}

// SharedStatus reports migration status for the shared database.
func (o *Orchestrator) SharedStatus(ctx context.Context) MigrationStatus {
	creds, err := o.creds.GetSharedDatabaseCredentials(ctx)
	if err != nil {
		o.log.Warn("shared database credentials unavailable", zap.Error(err))
		return unreachableStatus()
	}
	return o.runner.Status(ctx, creds.AdminConnectionString)
}

// migrateTenant migrates one tenant's database. Every failure mode becomes an
// unsuccessful result; nothing a single tenant does can take down the run.
func (o *Orchestrator) migrateTenant(ctx context.Context, tenant metadata.TenantDetails) MigrationResult {
	started := time.Now()
	log := o.log.With(
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("tenant", tenant.Identifier))

	res, err := o.resolver.ResolveSafely(ctx, &tenant, true)
	if err != nil {
		log.Error("tenant connection resolution failed", zap.Error(err))
		return failureResult(started, fmt.Sprintf("resolve: %v", err)).forTenant(tenant.ID, tenant.Identifier)
	}
	if res.Strategy == dbrouting.StrategyShared {
		// Already covered by the shared pass; recorded so the run ledger stays
		// complete.
		log.Debug("tenant runs on the shared database, skipping")
		result := successResult(started, nil).forTenant(tenant.ID, tenant.Identifier)
		result.Skipped = true
		return result
	}
	if !res.IsSafeForMigration {
		log.Warn("tenant connection not confirmed, refusing to migrate",
			zap.String("warning", res.Warning))
		return failureResult(started, res.Warning).forTenant(tenant.ID, tenant.Identifier)
	}

	creds, err := o.creds.GetDatabaseCredentials(ctx, tenant.ID)
	if err != nil {
		log.Error("tenant database credentials unavailable", zap.Error(err))
		return failureResult(started, fmt.Sprintf("credentials: %v", err)).forTenant(tenant.ID, tenant.Identifier)
	}
	if err := creds.Validate(); err != nil {
		log.Error("tenant database credentials unusable", zap.Error(err))
		return failureResult(started, fmt.Sprintf("credentials: %v", err)).forTenant(tenant.ID, tenant.Identifier)
	}

	result := o.runner.ApplyMigrations(ctx, creds.AdminConnectionString).forTenant(tenant.ID, tenant.Identifier)
	if result.Success {
		log.Info("tenant migrated", zap.Int("applied", result.MigrationsCount))
	} else {
		log.Error("tenant migration failed", zap.String("error", result.ErrorMessage))
	}
	return result
}

// collectIsolatedTenants enumerates every Dedicated and External tenant,
// deduplicated by id. Listing failures show up as empty pages, which keeps
// enumeration non-fatal: an unreachable customer API means migrating nobody,
// not crashing.
func (o *Orchestrator) collectIsolatedTenants(ctx context.Context) []metadata.TenantDetails {
	var (
		tenants []metadata.TenantDetails
		seen    = make(map[uuid.UUID]struct{})
	)
	for _, strategy := range []dbrouting.Strategy{dbrouting.StrategyDedicated, dbrouting.StrategyExternal} {
		for page := 1; ; page++ {
			result := o.tenants.GetAllPaginated(ctx, strategy, enumerationPageSize, page)
			for _, tenant := range result.Items {
				if tenant.ID == uuid.Nil {
					o.log.Warn("skipping tenant with empty id", zap.String("tenant", tenant.Identifier))
					continue
				}
				if _, ok := seen[tenant.ID]; ok {
					continue
				}
				seen[tenant.ID] = struct{}{}
				tenants = append(tenants, tenant)
			}
			if len(result.Items) < enumerationPageSize {
				break
			}
		}
	}
	return tenants
}
