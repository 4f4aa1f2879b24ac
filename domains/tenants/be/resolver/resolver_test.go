package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/metadata"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/cache"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/dbrouting"
)

// fakeMeta is an in-memory stand-in for the customer API database-info fetch.
type fakeMeta struct {
	mu    sync.Mutex
	info  map[uuid.UUID]metadata.DatabaseInfo
	fail  bool
	calls atomic.Int32
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{info: make(map[uuid.UUID]metadata.DatabaseInfo)}
}

func (f *fakeMeta) FetchDatabaseInfo(_ context.Context, tenantID uuid.UUID) (metadata.DatabaseInfo, error) {
	f.calls.Add(1)
	if f.fail {
		return metadata.DatabaseInfo{}, metadata.ErrUnavailable
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.info[tenantID]; ok {
		return info, nil
	}
	return metadata.DatabaseInfo{}, metadata.ErrUnavailable
}

func (f *fakeMeta) set(info metadata.DatabaseInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info[info.TenantID] = info
}

func testDefaults() Defaults {
	return Defaults{
		WriteConnectionString: "host=shared-db user=app dbname=teck",
		Provider:              dbrouting.ProviderPostgreSQL,
	}
}

func newTestResolver(meta metadataSource, dist distributedCache) *Resolver {
	return New(meta, dist, zap.NewNop(), Config{Defaults: testDefaults()})
}

func dedicatedTenant() (*metadata.TenantDetails, metadata.DatabaseInfo) {
	id := uuid.New()
	tenant := &metadata.TenantDetails{
		ID:                    id,
		Identifier:            "acme",
		StrategyName:          "dedicated",
		ProviderName:          "postgresql",
		WriteConnectionString: "host=acme-embedded",
		IsActive:              true,
	}
	info := metadata.DatabaseInfo{
		TenantID:              id,
		WriteConnectionString: "host=acme-db",
		ReadConnectionString:  "host=acme-db-ro",
		ProviderName:          "postgresql",
		StrategyName:          "dedicated",
		HasReadReplicas:       true,
	}
	return tenant, info
}

func TestResolveNilTenantReturnsDefault(t *testing.T) {
	t.Parallel()

	r := newTestResolver(newFakeMeta(), nil)

	res := r.Resolve(context.Background(), nil)
	require.True(t, res.IsSuccess)
	require.Equal(t, dbrouting.StrategyShared, res.Strategy)
	require.Equal(t, testDefaults().WriteConnectionString, res.WriteConnectionString)
}

func TestResolveIdempotentWithoutSecondFetch(t *testing.T) {
	t.Parallel()

	meta := newFakeMeta()
	tenant, info := dedicatedTenant()
	meta.set(info)

	r := newTestResolver(meta, nil)
	ctx := context.Background()

	first := r.Resolve(ctx, tenant)
	second := r.Resolve(ctx, tenant)

	require.True(t, first.IsSuccess)
	require.Equal(t, first.WriteConnectionString, second.WriteConnectionString)
	require.Equal(t, first.ReadConnectionString, second.ReadConnectionString)
	require.Equal(t, first.Provider, second.Provider)
	require.True(t, second.FromCache)
	require.Equal(t, int32(1), meta.calls.Load())
}

func TestResolveFallsBackToTenantRecordOnFetchFailure(t *testing.T) {
	t.Parallel()

	meta := newFakeMeta()
	meta.fail = true
	tenant, _ := dedicatedTenant()

	r := newTestResolver(meta, nil)

	res := r.Resolve(context.Background(), tenant)
	require.True(t, res.IsSuccess)
	require.Equal(t, "host=acme-embedded", res.WriteConnectionString)
	require.NotEmpty(t, res.ReadConnectionString)
	require.Equal(t, dbrouting.StrategyDedicated, res.Strategy)
}

func TestResolveNeverReturnsBlankConnectionString(t *testing.T) {
	t.Parallel()

	meta := newFakeMeta()
	meta.fail = true

	// Tenant with no embedded connection info at all.
	tenant := &metadata.TenantDetails{ID: uuid.New(), Identifier: "empty"}

	r := newTestResolver(meta, nil)

	res := r.Resolve(context.Background(), tenant)
	require.True(t, res.IsSuccess)
	require.Equal(t, testDefaults().WriteConnectionString, res.WriteConnectionString)
	require.Equal(t, dbrouting.StrategyShared, res.Strategy)
}

func TestResolveMirrorsWriteStringWithoutReadReplicas(t *testing.T) {
	t.Parallel()

	meta := newFakeMeta()
	id := uuid.New()
	// Stale read endpoint survives on the record but replicas are disabled.
	meta.set(metadata.DatabaseInfo{
		TenantID:              id,
		WriteConnectionString: "host=a",
		ReadConnectionString:  "host=b",
		StrategyName:          "dedicated",
		HasReadReplicas:       false,
	})
	tenant := &metadata.TenantDetails{ID: id, StrategyName: "dedicated", WriteConnectionString: "host=a"}

	r := newTestResolver(meta, nil)

	res := r.Resolve(context.Background(), tenant)
	require.Equal(t, "host=a", res.WriteConnectionString)
	require.Equal(t, "host=a", res.ReadConnectionString)
}

func TestResolveUsesDistributedTier(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	dist := cache.NewFailSafe(client, zap.NewNop(), cache.FailSafeConfig{})

	meta := newFakeMeta()
	tenant, info := dedicatedTenant()
	meta.set(info)

	// First resolver fills the distributed tier.
	first := newTestResolver(meta, dist)
	res := first.Resolve(context.Background(), tenant)
	require.True(t, res.IsSuccess)
	require.Equal(t, "host=acme-db", res.WriteConnectionString)
	require.Equal(t, int32(1), meta.calls.Load())

	// A second resolver instance (fresh local cache) hits the shared tier
	// instead of the customer API.
	second := newTestResolver(meta, dist)
	res = second.Resolve(context.Background(), tenant)
	require.True(t, res.IsSuccess)
	require.True(t, res.FromCache)
	require.Equal(t, "host=acme-db", res.WriteConnectionString)
	require.Equal(t, int32(1), meta.calls.Load())
}

func TestResolveServesStaleDistributedEntryWhenAPIDown(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	dist := cache.NewFailSafe(client, zap.NewNop(), cache.FailSafeConfig{})

	meta := newFakeMeta()
	tenant, info := dedicatedTenant()
	meta.set(info)

	warm := newTestResolver(meta, dist)
	warm.Resolve(context.Background(), tenant)

	// Fresh entry expires; API goes down. The stale shadow still answers.
	mr.Del("tenant-db-connection:" + tenant.ID.String())
	meta.fail = true

	cold := newTestResolver(meta, dist)
	res := cold.Resolve(context.Background(), tenant)
	require.True(t, res.IsSuccess)
	require.Equal(t, "host=acme-db", res.WriteConnectionString)
	require.True(t, res.FromCache)
}

func TestResolveSafelySharedAlwaysSafe(t *testing.T) {
	t.Parallel()

	meta := newFakeMeta()
	id := uuid.New()
	meta.set(metadata.DatabaseInfo{
		TenantID:              id,
		WriteConnectionString: "host=shared-db",
		StrategyName:          "shared",
	})
	tenant := &metadata.TenantDetails{ID: id, StrategyName: "shared", WriteConnectionString: "host=shared-db"}

	r := newTestResolver(meta, nil)
	ctx := context.Background()

	res, err := r.ResolveSafely(ctx, tenant, true)
	require.NoError(t, err)
	require.True(t, res.IsSafeForMigration)

	// Now the API is down and the entry is cached: shared stays safe.
	meta.fail = true
	res, err = r.ResolveSafely(ctx, tenant, true)
	require.NoError(t, err)
	require.True(t, res.IsSafeForMigration)
	require.True(t, res.FromCache)
}

func TestResolveSafelyDedicatedStaleCacheUnreachableAPIIsUnsafe(t *testing.T) {
	t.Parallel()

	meta := newFakeMeta()
	tenant, info := dedicatedTenant()
	meta.set(info)

	r := newTestResolver(meta, nil)
	ctx := context.Background()

	// Warm the cache with a confirmed resolution.
	res, err := r.ResolveSafely(ctx, tenant, true)
	require.NoError(t, err)
	require.True(t, res.IsSafeForMigration)
	require.True(t, res.CustomerAPIAvailable)

	// API goes down; the cached tuple may be stale.
	meta.fail = true
	res, err = r.ResolveSafely(ctx, tenant, true)
	require.NoError(t, err)
	require.True(t, res.IsSuccess)
	require.False(t, res.IsSafeForMigration)
	require.False(t, res.CustomerAPIAvailable)
	require.True(t, res.FromCache)
	require.Contains(t, res.Warning, tenant.ID.String())
	require.Contains(t, res.Warning, "dedicated")
	// The stale tuple is still carried for observability.
	require.Equal(t, "host=acme-db", res.WriteConnectionString)
}

func TestResolveSafelyDedicatedCachedWithoutConfirmationRequirement(t *testing.T) {
	t.Parallel()

	meta := newFakeMeta()
	tenant, info := dedicatedTenant()
	meta.set(info)

	r := newTestResolver(meta, nil)
	ctx := context.Background()

	_, err := r.ResolveSafely(ctx, tenant, true)
	require.NoError(t, err)

	meta.fail = true
	res, err := r.ResolveSafely(ctx, tenant, false)
	require.NoError(t, err)
	require.True(t, res.IsSafeForMigration)
	require.Equal(t, int32(1), meta.calls.Load())
}

func TestResolveSafelyColdCacheFallsBackToTenantRecord(t *testing.T) {
	t.Parallel()

	meta := newFakeMeta()
	meta.fail = true
	tenant, _ := dedicatedTenant()

	r := newTestResolver(meta, nil)

	res, err := r.ResolveSafely(context.Background(), tenant, true)
	require.NoError(t, err)
	require.True(t, res.IsSuccess)
	require.False(t, res.IsSafeForMigration)
	require.Equal(t, "host=acme-embedded", res.WriteConnectionString)
	require.NotEmpty(t, res.Warning)

	// Without the confirmation requirement the same fallback is acceptable.
	r.Invalidate(tenant.ID)
	res, err = r.ResolveSafely(context.Background(), tenant, false)
	require.NoError(t, err)
	require.True(t, res.IsSafeForMigration)
	require.False(t, res.CustomerAPIAvailable)
}

func TestResolveSafelyRejectsMissingStrategy(t *testing.T) {
	t.Parallel()

	meta := newFakeMeta()
	meta.fail = true
	tenant := &metadata.TenantDetails{ID: uuid.New(), WriteConnectionString: "host=mystery-db"}

	r := newTestResolver(meta, nil)

	_, err := r.ResolveSafely(context.Background(), tenant, true)
	require.ErrorIs(t, err, dbrouting.ErrNoStrategy)
}

func TestResolveSafelyNilTenantIsSharedDefault(t *testing.T) {
	t.Parallel()

	r := newTestResolver(newFakeMeta(), nil)

	res, err := r.ResolveSafely(context.Background(), nil, true)
	require.NoError(t, err)
	require.True(t, res.IsSuccess)
	require.True(t, res.IsSafeForMigration)
	require.Equal(t, dbrouting.StrategyShared, res.Strategy)
}
