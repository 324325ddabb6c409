package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

// Cache namespaces keys and logs store failures. Store errors never fail a
// read; they degrade to a miss.
type Cache struct {
	store   Store
	service string
	logger  *slog.Logger
}

// New builds a Cache over store. A nil logger discards output.
func New(store Store, service string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{store: store, service: service, logger: logger}
}

// Key returns the namespaced key for an operation.
func (c *Cache) Key(operation string) string {
	return GenerateKey(c.service, operation)
}

// Invalidate removes the entry for operation.
func (c *Cache) Invalidate(ctx context.Context, operation string) {
	key := c.Key(operation)
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// ReadThrough serves operation from the cache or runs load on a miss. Only
// successful results are stored. The bool reports a cache hit.
func ReadThrough[T any](ctx context.Context, c *Cache, operation string, ttl time.Duration, load func(context.Context) result.Result[T]) (result.Result[T], bool) {
	key := c.Key(operation)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "cache read failed, treating as miss", slog.String("key", key), slog.String("error", err.Error()))
	}
	if ok {
		var data T
		if err := json.Unmarshal(raw, &data); err == nil {
			return result.Succeed(data), true
		}
		c.logger.WarnContext(ctx, "cached entry undecodable, reloading", slog.String("key", key))
	}

	res := load(ctx)
	if !res.IsSuccessful {
		return res, false
	}
	payload, err := json.Marshal(res.Data)
	if err != nil {
		c.logger.WarnContext(ctx, "cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return res, false
	}
	if err := c.store.Set(ctx, key, payload, ttl); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return res, false
}
