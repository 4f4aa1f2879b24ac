// Package resolver turns a tenant record into usable database connection
// information. The fast path is best-effort and never fails outright; the safe
// path adds the live-confirmation rules migrations depend on. Normal request
// traffic tolerates a stale cached connection string; DDL against a rotated
// endpoint does not, which is why the two paths exist.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/metadata"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/cache"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/dbrouting"
)

// distributedKeyPrefix namespaces resolver entries in the shared cache.
const distributedKeyPrefix = "tenant-db-connection:"

// ConnectionResult is the outcome of one resolution. A result can be
// successful (usable for normal traffic) yet unsafe for migration; the
// orchestrator must refuse to run schema changes on an unsafe result.
type ConnectionResult struct {
	TenantID              uuid.UUID
	WriteConnectionString string
	ReadConnectionString  string
	Provider              dbrouting.Provider
	Strategy              dbrouting.Strategy

	IsSuccess            bool
	IsSafeForMigration   bool
	CustomerAPIAvailable bool
	FromCache            bool

	Warning      string
	ErrorMessage string
}

// connectionRecord is the cached connection tuple, shared between the local
// and distributed tiers.
type connectionRecord struct {
	TenantID              uuid.UUID          `json:"tenantId"`
	WriteConnectionString string             `json:"writeConnectionString"`
	ReadConnectionString  string             `json:"readConnectionString"`
	Provider              dbrouting.Provider `json:"provider"`
	Strategy              dbrouting.Strategy `json:"strategy"`
	HasReadReplicas       bool               `json:"hasReadReplicas"`
}

// metadataSource is the live-confirmation fetch against the customer API.
// Satisfied by *metadata.Store.
type metadataSource interface {
	FetchDatabaseInfo(ctx context.Context, tenantID uuid.UUID) (metadata.DatabaseInfo, error)
}

// distributedCache is the fail-safe shared cache tier. Satisfied by
// *cache.FailSafe; nil disables the tier (single-instance deployments, tests).
type distributedCache interface {
	GetOrSet(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) (cache.Result, error)
}

// Defaults is the process-wide fallback connection info: the shared database
// on the default provider. Callers never receive a blank connection string;
// when everything else fails, they get this.
type Defaults struct {
	WriteConnectionString string
	ReadConnectionString  string
	Provider              dbrouting.Provider
}

// Resolver resolves tenant connections through three tiers: a per-instance
// local cache, the distributed fail-safe cache, and the customer API, with a
// tenant-embedded fallback when all tiers fail.
type Resolver struct {
	meta     metadataSource
	dist     distributedCache
	local    *cache.Local[connectionRecord]
	log      *zap.Logger
	defaults Defaults
}

// Config configures a Resolver.
type Config struct {
	// Defaults must carry a non-empty write connection string.
	Defaults Defaults
	// LocalTTL bounds local cache entries; default 5 minutes.
	LocalTTL time.Duration
	// Now overrides the local cache clock for tests.
	Now func() time.Time
}

// New builds a Resolver. meta and log are required; dist may be nil to
// disable the distributed tier.
func New(meta metadataSource, dist distributedCache, log *zap.Logger, cfg Config) *Resolver {
	if meta == nil {
		panic("resolver requires metadata source")
	}
	if log == nil {
		panic("resolver requires logger")
	}
	if strings.TrimSpace(cfg.Defaults.WriteConnectionString) == "" {
		panic("resolver requires default write connection string")
	}
	if cfg.Defaults.Provider == dbrouting.ProviderNone {
		cfg.Defaults.Provider = dbrouting.DefaultProvider
	}
	if cfg.Defaults.ReadConnectionString == "" {
		cfg.Defaults.ReadConnectionString = cfg.Defaults.WriteConnectionString
	}
	if cfg.LocalTTL <= 0 {
		cfg.LocalTTL = 5 * time.Minute
	}

	return &Resolver{
		meta:     meta,
		dist:     dist,
		local:    cache.NewLocal[connectionRecord](cache.LocalConfig{TTL: cfg.LocalTTL, Now: cfg.Now}),
		log:      log,
		defaults: cfg.Defaults,
	}
}

// Resolve is the fast path: best-effort, never returns an unusable result.
// Tier order: local cache, distributed fail-safe cache, tenant-embedded
// fields, process default.
func (r *Resolver) Resolve(ctx context.Context, tenant *metadata.TenantDetails) ConnectionResult {
	if tenant == nil {
		return r.defaultResult()
	}

	if rec, ok := r.local.Get(tenant.ID.String()); ok {
		return r.resultFromRecord(rec, true, false)
	}

	if rec, fromCache, ok := r.fetchThroughDistributed(ctx, tenant.ID); ok {
		r.local.Set(tenant.ID.String(), rec)
		return r.resultFromRecord(rec, fromCache, !fromCache)
	}

	// Tenant-embedded fallback: the record itself describes its database.
	if rec, ok := recordFromTenant(tenant); ok {
		r.local.Set(tenant.ID.String(), rec)
		return r.resultFromRecord(rec, false, false)
	}

	r.log.Warn("tenant carries no usable connection info, using process default",
		zap.String("tenant_id", tenant.ID.String()))
	return r.defaultResult()
}

// ResolveSafely is the migration-grade path. For Dedicated/External tenants
// with requireCustomerAPI set, the connection must be confirmed against the
// customer API in this call; otherwise the result comes back unsafe for
// migration. Shared tenants are structurally exempt: the shared database is a
// single well-known target. The returned error is non-nil only for
// configuration errors (no operating strategy).
func (r *Resolver) ResolveSafely(ctx context.Context, tenant *metadata.TenantDetails, requireCustomerAPI bool) (ConnectionResult, error) {
	if tenant == nil {
		return r.defaultResult(), nil
	}

	if rec, ok := r.local.Get(tenant.ID.String()); ok {
		if rec.Strategy == dbrouting.StrategyShared {
			res := r.resultFromRecord(rec, true, false)
			res.IsSafeForMigration = true
			return res, nil
		}
		if !requireCustomerAPI {
			res := r.resultFromRecord(rec, true, false)
			res.IsSafeForMigration = true
			return res, nil
		}
		return r.confirmOrDegrade(ctx, tenant, rec), nil
	}

	info, err := r.meta.FetchDatabaseInfo(ctx, tenant.ID)
	if err == nil {
		rec := recordFromInfo(info)
		if verr := rec.Strategy.Validate(); verr != nil {
			return ConnectionResult{}, fmt.Errorf("tenant %s: %w", tenant.ID, verr)
		}
		r.local.Set(tenant.ID.String(), rec)
		res := r.resultFromRecord(rec, false, true)
		res.IsSafeForMigration = true
		return res, nil
	}
	r.log.Warn("customer api unreachable during safe resolution",
		zap.String("tenant_id", tenant.ID.String()), zap.Error(err))

	declared := tenant.Strategy()
	rec, ok := recordFromTenant(tenant)
	if !ok {
		if declared == dbrouting.StrategyNone {
			return ConnectionResult{}, fmt.Errorf("tenant %s: %w", tenant.ID, dbrouting.ErrNoStrategy)
		}
		if declared.RequiresOwnDatabase() && requireCustomerAPI {
			// No embedded connection info and no live confirmation: there is
			// nothing trustworthy to migrate against.
			res := r.defaultResult()
			res.Strategy = declared
			res.IsSafeForMigration = false
			res.Warning = unsafeWarning(tenant.ID, declared)
			return res, nil
		}
		res := r.defaultResult()
		return res, nil
	}
	if declared == dbrouting.StrategyNone {
		return ConnectionResult{}, fmt.Errorf("tenant %s: %w", tenant.ID, dbrouting.ErrNoStrategy)
	}
	r.local.Set(tenant.ID.String(), rec)

	res := r.resultFromRecord(rec, false, false)
	if rec.Strategy.RequiresOwnDatabase() && requireCustomerAPI {
		res.IsSafeForMigration = false
		res.Warning = unsafeWarning(tenant.ID, rec.Strategy)
	} else {
		res.IsSafeForMigration = true
	}
	return res, nil
}

// fetchThroughDistributed runs the remote fetch through the fail-safe cache
// tier, or straight against the customer API when no distributed cache is
// wired. Returns false on any failure so the caller can fall back.
func (r *Resolver) fetchThroughDistributed(ctx context.Context, tenantID uuid.UUID) (connectionRecord, bool, bool) {
	if r.dist == nil {
		info, err := r.meta.FetchDatabaseInfo(ctx, tenantID)
		if err != nil {
			r.log.Warn("connection fetch failed, falling back to tenant record",
				zap.String("tenant_id", tenantID.String()), zap.Error(err))
			return connectionRecord{}, false, false
		}
		return recordFromInfo(info), false, true
	}

	res, err := r.dist.GetOrSet(ctx, distributedKeyPrefix+tenantID.String(), func(fetchCtx context.Context) ([]byte, error) {
		info, err := r.meta.FetchDatabaseInfo(fetchCtx, tenantID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(recordFromInfo(info))
	})
	if err != nil {
		r.log.Warn("distributed connection lookup failed, falling back to tenant record",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return connectionRecord{}, false, false
	}

	var rec connectionRecord
	if uerr := json.Unmarshal(res.Value, &rec); uerr != nil || rec.WriteConnectionString == "" {
		r.log.Warn("garbled distributed cache entry, falling back",
			zap.String("tenant_id", tenantID.String()))
		return connectionRecord{}, false, false
	}
	return rec, res.FromCache, true
}

// confirmOrDegrade refreshes a cached non-shared entry against the customer
// API, or returns the stale tuple marked unsafe for migration.
func (r *Resolver) confirmOrDegrade(ctx context.Context, tenant *metadata.TenantDetails, stale connectionRecord) ConnectionResult {
	info, err := r.meta.FetchDatabaseInfo(ctx, tenant.ID)
	if err == nil {
		rec := recordFromInfo(info)
		r.local.Set(tenant.ID.String(), rec)
		res := r.resultFromRecord(rec, false, true)
		res.IsSafeForMigration = true
		return res
	}

	r.log.Warn("customer api unreachable, cached connection cannot be trusted for migration",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("strategy", string(stale.Strategy)),
		zap.Error(err))

	res := r.resultFromRecord(stale, true, false)
	res.IsSafeForMigration = false
	res.Warning = unsafeWarning(tenant.ID, stale.Strategy)
	return res
}

// Invalidate drops the local entry for a tenant, forcing the next resolution
// through the outer tiers.
func (r *Resolver) Invalidate(tenantID uuid.UUID) {
	r.local.Delete(tenantID.String())
}

func (r *Resolver) defaultResult() ConnectionResult {
	return ConnectionResult{
		WriteConnectionString: r.defaults.WriteConnectionString,
		ReadConnectionString:  r.defaults.ReadConnectionString,
		Provider:              r.defaults.Provider,
		Strategy:              dbrouting.StrategyShared,
		IsSuccess:             true,
		IsSafeForMigration:    true,
	}
}

// resultFromRecord converts a cached tuple into a caller-facing result. When
// the tenant has no read replicas the read string always mirrors the write
// string, even if a stale read endpoint survives in the record.
func (r *Resolver) resultFromRecord(rec connectionRecord, fromCache, apiConfirmed bool) ConnectionResult {
	read := rec.ReadConnectionString
	if !rec.HasReadReplicas || read == "" {
		read = rec.WriteConnectionString
	}
	return ConnectionResult{
		TenantID:              rec.TenantID,
		WriteConnectionString: rec.WriteConnectionString,
		ReadConnectionString:  read,
		Provider:              rec.Provider,
		Strategy:              rec.Strategy,
		IsSuccess:             true,
		IsSafeForMigration:    rec.Strategy == dbrouting.StrategyShared,
		CustomerAPIAvailable:  apiConfirmed,
		FromCache:             fromCache,
	}
}

func recordFromInfo(info metadata.DatabaseInfo) connectionRecord {
	rec := connectionRecord{
		TenantID:              info.TenantID,
		WriteConnectionString: info.WriteConnectionString,
		ReadConnectionString:  info.ReadConnectionString,
		Provider:              info.Provider(),
		Strategy:              info.Strategy(),
		HasReadReplicas:       info.HasReadReplicas,
	}
	if !rec.HasReadReplicas {
		rec.ReadConnectionString = rec.WriteConnectionString
	}
	return rec
}

// recordFromTenant derives connection info from the fields carried on the
// tenant record itself. Returns false when no usable write string exists.
func recordFromTenant(tenant *metadata.TenantDetails) (connectionRecord, bool) {
	if strings.TrimSpace(tenant.WriteConnectionString) == "" {
		return connectionRecord{}, false
	}
	rec := connectionRecord{
		TenantID:              tenant.ID,
		WriteConnectionString: tenant.WriteConnectionString,
		ReadConnectionString:  tenant.ReadConnectionString,
		Provider:              tenant.Provider(),
		Strategy:              tenant.Strategy(),
		HasReadReplicas:       tenant.HasReadReplicas,
	}
	if rec.Strategy == dbrouting.StrategyNone {
		// Best-effort path only: a tenant with connection info but no declared
		// strategy is routed to it as if shared. The safe path validates.
		rec.Strategy = dbrouting.StrategyShared
	}
	if !rec.HasReadReplicas {
		rec.ReadConnectionString = rec.WriteConnectionString
	}
	return rec, true
}

func unsafeWarning(tenantID uuid.UUID, strategy dbrouting.Strategy) string {
	return fmt.Sprintf(
		"tenant %s uses the %s strategy but the customer api could not confirm its connection; stale data must not be used for schema migration",
		tenantID, strategy)
}
