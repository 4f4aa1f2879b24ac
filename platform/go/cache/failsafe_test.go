package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newTestFailSafe(t *testing.T, cfg FailSafeConfig) (*FailSafe, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewFailSafe(client, zap.NewNop(), cfg), mr
}

func TestFailSafeFetchesOnMissAndCachesResult(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFailSafe(t, FailSafeConfig{TTL: time.Minute})
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("payload"), nil
	}

	res, err := fs.GetOrSet(ctx, "k", fetch)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), res.Value)
	require.False(t, res.FromCache)

	res, err = fs.GetOrSet(ctx, "k", fetch)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), res.Value)
	require.True(t, res.FromCache)
	require.False(t, res.Stale)
	require.Equal(t, int32(1), calls.Load())
}

func TestFailSafeServesStaleOnFetchFailure(t *testing.T) {
	t.Parallel()

	fs, mr := newTestFailSafe(t, FailSafeConfig{TTL: time.Minute})
	ctx := context.Background()

	_, err := fs.GetOrSet(ctx, "k", func(context.Context) ([]byte, error) {
		return []byte("v1"), nil
	})
	require.NoError(t, err)

	// Expire the fresh entry but keep the stale shadow.
	mr.Del("k")

	res, err := fs.GetOrSet(ctx, "k", func(context.Context) ([]byte, error) {
		return nil, errors.New("upstream down")
	})
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), res.Value)
	require.True(t, res.FromCache)
	require.True(t, res.Stale)
}

func TestFailSafePropagatesErrorWithoutStaleValue(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFailSafe(t, FailSafeConfig{TTL: time.Minute})

	wantErr := errors.New("upstream down")
	_, err := fs.GetOrSet(context.Background(), "missing", func(context.Context) ([]byte, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestFailSafeServesStaleAfterSoftTimeout(t *testing.T) {
	t.Parallel()

	fs, mr := newTestFailSafe(t, FailSafeConfig{
		TTL:         time.Minute,
		SoftTimeout: 20 * time.Millisecond,
		HardTimeout: 2 * time.Second,
	})
	ctx := context.Background()

	_, err := fs.GetOrSet(ctx, "k", func(context.Context) ([]byte, error) {
		return []byte("v1"), nil
	})
	require.NoError(t, err)
	mr.Del("k")

	started := time.Now()
	res, err := fs.GetOrSet(ctx, "k", func(fetchCtx context.Context) ([]byte, error) {
		select {
		case <-time.After(time.Second):
			return []byte("v2"), nil
		case <-fetchCtx.Done():
			return nil, fetchCtx.Err()
		}
	})
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), res.Value)
	require.True(t, res.Stale)
	require.Less(t, time.Since(started), 500*time.Millisecond)
}

func TestFailSafeCoalescesConcurrentFetches(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFailSafe(t, FailSafeConfig{TTL: time.Minute})

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("once"), nil
	}

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			res, err := fs.GetOrSet(context.Background(), "same-key", fetch)
			if err != nil {
				return err
			}
			if string(res.Value) != "once" {
				return errors.New("unexpected value")
			}
			return nil
		})
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())
	require.Equal(t, int32(1), calls.Load())
}
