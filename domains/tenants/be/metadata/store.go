package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Teck-Lab/teck-cloud-saas/platform/go/cache"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/dbrouting"
)

// remote is the slice of the customer API the store consumes. Satisfied by
// *Client; tests substitute fakes.
type remote interface {
	ListTenants(ctx context.Context, strategy dbrouting.Strategy, size, page int) (Page, error)
	GetTenant(ctx context.Context, key string) (TenantDetails, error)
	GetDatabaseInfo(ctx context.Context, tenantID uuid.UUID) (DatabaseInfo, error)
}

// Store is the cached tenant metadata store. Lookups hit a TTL cache first;
// concurrent misses for the same key collapse into one upstream call, so a
// cache expiry never stampedes the customer API.
type Store struct {
	api     remote
	log     *zap.Logger
	tenants *cache.Local[TenantDetails]
	pages   *cache.Local[Page]
	group   singleflight.Group
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// TTL bounds cache entries; default 30 minutes.
	TTL time.Duration
	// Now overrides the cache clock for tests.
	Now func() time.Time
}

// NewStore builds a cached store over api. Both api and log are required.
func NewStore(api remote, log *zap.Logger, cfg StoreConfig) *Store {
	if api == nil {
		panic("metadata store requires customer api client")
	}
	if log == nil {
		panic("metadata store requires logger")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}

	localCfg := cache.LocalConfig{TTL: cfg.TTL, Now: cfg.Now}
	return &Store{
		api:     api,
		log:     log,
		tenants: cache.NewLocal[TenantDetails](localCfg),
		pages:   cache.NewLocal[Page](localCfg),
	}
}

// GetByID resolves a tenant by its id.
func (s *Store) GetByID(ctx context.Context, tenantID uuid.UUID) (TenantDetails, error) {
	return s.lookup(ctx, "TenantById:"+tenantID.String(), tenantID.String())
}

// GetByIdentifier resolves a tenant by its stable identifier (slug).
func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (TenantDetails, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return TenantDetails{}, fmt.Errorf("tenant identifier is required")
	}
	return s.lookup(ctx, "Tenant:"+identifier, identifier)
}

// GetByName resolves a tenant by display name.
func (s *Store) GetByName(ctx context.Context, name string) (TenantDetails, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return TenantDetails{}, fmt.Errorf("tenant name is required")
	}
	return s.lookup(ctx, "TenantByName:"+name, name)
}

// lookup serves cacheKey from the TTL cache, coalescing concurrent upstream
// fetches for the same key.
func (s *Store) lookup(ctx context.Context, cacheKey, remoteKey string) (TenantDetails, error) {
	if details, ok := s.tenants.Get(cacheKey); ok {
		return details, nil
	}

	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		// Re-check: another caller may have filled the cache while we queued.
		if details, ok := s.tenants.Get(cacheKey); ok {
			return details, nil
		}
		details, err := s.api.GetTenant(ctx, remoteKey)
		if err != nil {
			return TenantDetails{}, err
		}
		s.tenants.Set(cacheKey, details)
		return details, nil
	})
	if err != nil {
		return TenantDetails{}, err
	}
	return v.(TenantDetails), nil
}

// GetAllPaginated lists tenants filtered by strategy (StrategyNone means
// unfiltered). Remote failures degrade to an explicit empty page: callers must
// treat an empty page as "no tenants of this kind", so the degradation is
// logged at warn level rather than surfaced as an error.
func (s *Store) GetAllPaginated(ctx context.Context, strategy dbrouting.Strategy, size, page int) Page {
	cacheKey := fmt.Sprintf("Tenants:%s:%d:%d", strategy, size, page)
	if cached, ok := s.pages.Get(cacheKey); ok {
		return cached
	}

	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		if cached, ok := s.pages.Get(cacheKey); ok {
			return cached, nil
		}
		result, err := s.api.ListTenants(ctx, strategy, size, page)
		if err != nil {
			return Page{}, err
		}
		s.pages.Set(cacheKey, result)
		return result, nil
	})
	if err != nil {
		s.log.Warn("tenant listing unavailable, treating as empty page",
			zap.String("strategy", string(strategy)),
			zap.Int("size", size),
			zap.Int("page", page),
			zap.Error(err))
		return Page{Page: page, Size: size}
	}
	return v.(Page)
}

// FindPrimaryTenantID resolves each id and returns the one marked primary, or
// the first id that resolves when none is marked, or false when none resolve.
func (s *Store) FindPrimaryTenantID(ctx context.Context, ids []uuid.UUID) (uuid.UUID, bool) {
	var (
		first    uuid.UUID
		hasFirst bool
	)
	for _, id := range ids {
		details, err := s.GetByID(ctx, id)
		if err != nil {
			s.log.Debug("tenant did not resolve while finding primary",
				zap.String("tenant_id", id.String()), zap.Error(err))
			continue
		}
		if details.IsPrimary {
			return details.ID, true
		}
		if !hasFirst {
			first = details.ID
			hasFirst = true
		}
	}
	return first, hasFirst
}

// FetchDatabaseInfo reads the placement record straight from the customer API,
// bypassing the cache. The connection resolver owns its own caching tiers and
// uses this as its live-confirmation fetch.
func (s *Store) FetchDatabaseInfo(ctx context.Context, tenantID uuid.UUID) (DatabaseInfo, error) {
	return s.api.GetDatabaseInfo(ctx, tenantID)
}
