package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// stale entries outlive the fresh TTL by this factor so a flapping upstream
// can be bridged for a long while without keeping data forever.
const staleTTLFactor = 48

// staleSuffix marks the shadow key holding the last successfully fetched value.
const staleSuffix = ":stale"

// Result is the typed outcome of a fail-safe lookup.
type Result struct {
	Value []byte
	// FromCache is true when the value was served from Redis rather than a
	// fresh fetch, including stale serves.
	FromCache bool
	// Stale is true when the fresh entry was gone and the fetch could not be
	// completed in time, so the last known value was served instead.
	Stale bool
}

// FailSafeConfig tunes a FailSafe cache.
type FailSafeConfig struct {
	// TTL bounds how long a fetched value is served without refetching.
	TTL time.Duration
	// SoftTimeout is how long GetOrSet waits for the fetch before preferring a
	// stale value. The fetch keeps running in the background and refreshes the
	// cache when it eventually completes.
	SoftTimeout time.Duration
	// HardTimeout bounds the fetch entirely. Only reached when no stale value
	// exists to fall back on.
	HardTimeout time.Duration
}

// FailSafe is a Redis-backed cache with fail-safe semantics: a failed or slow
// refresh serves the last known value instead of propagating the error.
// Concurrent misses for the same key are coalesced into a single upstream
// fetch. Redis owns all cross-process locking; this type treats it as a black
// box addressed by key.
type FailSafe struct {
	client redis.Cmdable
	log    *zap.Logger
	group  singleflight.Group
	cfg    FailSafeConfig
}

// NewFailSafe builds a FailSafe cache. Client and logger are required.
func NewFailSafe(client redis.Cmdable, log *zap.Logger, cfg FailSafeConfig) *FailSafe {
	if client == nil {
		panic("failsafe cache requires redis client")
	}
	if log == nil {
		panic("failsafe cache requires logger")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SoftTimeout <= 0 {
		cfg.SoftTimeout = 500 * time.Millisecond
	}
	if cfg.HardTimeout <= cfg.SoftTimeout {
		cfg.HardTimeout = 2 * time.Second
	}
	return &FailSafe{client: client, log: log, cfg: cfg}
}

type fetchOutcome struct {
	value []byte
	err   error
}

// GetOrSet returns the cached value for key, fetching and storing it on a
// miss. On fetch failure or timeout the last known stale value is served when
// one exists; otherwise the fetch error propagates.
func (f *FailSafe) GetOrSet(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) (Result, error) {
	if cached, err := f.client.Get(ctx, key).Bytes(); err == nil {
		return Result{Value: cached, FromCache: true}, nil
	} else if !errors.Is(err, redis.Nil) {
		// Redis itself unreachable: fall through to the fetch path. The fetch
		// result cannot be cached, but callers still get an answer.
		f.log.Warn("failsafe cache read failed, bypassing cache", zap.String("key", key), zap.Error(err))
	}

	ch := f.group.DoChan(key, func() (any, error) {
		// Detached from the caller's context so a slow fetch can complete in
		// the background and refresh the cache for the next caller.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.HardTimeout)
		defer cancel()

		value, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		f.store(fetchCtx, key, value)
		return value, nil
	})

	soft := time.NewTimer(f.cfg.SoftTimeout)
	defer soft.Stop()

	select {
	case res := <-ch:
		if res.Err == nil {
			return Result{Value: res.Val.([]byte)}, nil
		}
		return f.serveStale(ctx, key, res.Err)
	case <-soft.C:
		// Fetch is slow. Prefer a stale value if we hold one; otherwise keep
		// waiting for the in-flight fetch up to its hard timeout.
		if stale, ok := f.readStale(ctx, key); ok {
			f.log.Warn("failsafe cache serving stale value after soft timeout", zap.String("key", key))
			return Result{Value: stale, FromCache: true, Stale: true}, nil
		}
		res := <-ch
		if res.Err == nil {
			return Result{Value: res.Val.([]byte)}, nil
		}
		return f.serveStale(ctx, key, res.Err)
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Invalidate drops both the fresh and stale entries for key.
func (f *FailSafe) Invalidate(ctx context.Context, key string) error {
	return f.client.Del(ctx, key, key+staleSuffix).Err()
}

func (f *FailSafe) store(ctx context.Context, key string, value []byte) {
	if err := f.client.Set(ctx, key, value, f.cfg.TTL).Err(); err != nil {
		f.log.Warn("failsafe cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := f.client.Set(ctx, key+staleSuffix, value, f.cfg.TTL*staleTTLFactor).Err(); err != nil {
		f.log.Warn("failsafe cache stale write failed", zap.String("key", key), zap.Error(err))
	}
}

func (f *FailSafe) readStale(ctx context.Context, key string) ([]byte, bool) {
	stale, err := f.client.Get(ctx, key+staleSuffix).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			f.log.Warn("failsafe cache stale read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return stale, true
}

func (f *FailSafe) serveStale(ctx context.Context, key string, fetchErr error) (Result, error) {
	if stale, ok := f.readStale(ctx, key); ok {
		f.log.Warn("failsafe cache serving stale value after fetch failure",
			zap.String("key", key), zap.Error(fetchErr))
		return Result{Value: stale, FromCache: true, Stale: true}, nil
	}
	return Result{}, fetchErr
}
