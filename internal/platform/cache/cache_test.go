package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestMemoryStore_ExpiresEntries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), got)

	clock.now = clock.now.Add(time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, _ := store.Get(ctx, "k")
	require.False(t, ok)
}

func TestGenerateKey(t *testing.T) {
	require.Equal(t, "preorder-gateway:products", GenerateKey("preorder-gateway", "products"))
	require.Equal(t, "products", GenerateKey("", "products"))
}

func TestReadThrough_HitSkipsLoader(t *testing.T) {
	c := New(NewMemoryStore(), "svc", nil)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) result.Result[[]string] {
		loads++
		return result.Succeed([]string{"a", "b"})
	}

	first, hit := ReadThrough(ctx, c, "products", time.Minute, load)
	require.False(t, hit)
	require.True(t, first.IsSuccessful)

	second, hit := ReadThrough(ctx, c, "products", time.Minute, load)
	require.True(t, hit)
	require.Equal(t, []string{"a", "b"}, second.Data)
	require.Equal(t, 1, loads)
}

func TestReadThrough_ExpiredEntryReloads(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := New(NewMemoryStore(WithClock(clock.Now)), "svc", nil)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) result.Result[int] {
		loads++
		return result.Succeed(loads)
	}

	_, _ = ReadThrough(ctx, c, "user-balance", 30*time.Minute, load)
	clock.now = clock.now.Add(31 * time.Minute)
	res, hit := ReadThrough(ctx, c, "user-balance", 30*time.Minute, load)
	require.False(t, hit)
	require.Equal(t, 2, res.Data)
	require.Equal(t, 2, loads)
}

func TestReadThrough_FailuresAreNotCached(t *testing.T) {
	c := New(NewMemoryStore(), "svc", nil)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) result.Result[int] {
		loads++
		return result.Failure[int](http.StatusServiceUnavailable, "Balance service is temporarily unavailable")
	}

	_, _ = ReadThrough(ctx, c, "user-balance", time.Minute, load)
	res, hit := ReadThrough(ctx, c, "user-balance", time.Minute, load)
	require.False(t, hit)
	require.False(t, res.IsSuccessful)
	require.Equal(t, 2, loads)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenStore) Delete(context.Context, string) error { return errors.New("connection refused") }

func TestReadThrough_StoreErrorsDegradeToMiss(t *testing.T) {
	c := New(brokenStore{}, "svc", nil)
	res, hit := ReadThrough(context.Background(), c, "products", time.Minute, func(context.Context) result.Result[string] {
		return result.Succeed("fresh")
	})
	require.False(t, hit)
	require.Equal(t, "fresh", res.Data)
	c.Invalidate(context.Background(), "products")
}

func TestInvalidate(t *testing.T) {
	c := New(NewMemoryStore(), "svc", nil)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) result.Result[int] {
		loads++
		return result.Succeed(loads)
	}
	_, _ = ReadThrough(ctx, c, "user-balance", time.Minute, load)
	c.Invalidate(ctx, "user-balance")
	_, hit := ReadThrough(ctx, c, "user-balance", time.Minute, load)
	require.False(t, hit)
	require.Equal(t, 2, loads)
}
