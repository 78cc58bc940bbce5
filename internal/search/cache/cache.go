// Package cache is a Redis-backed result cache for search responses.
// Concurrent identical lookups are collapsed through singleflight so a cold
// key computes at most once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/crauzier/catalogsearch/internal/search/filter"
	"github.com/crauzier/catalogsearch/internal/search/pipeline"
	"github.com/crauzier/catalogsearch/pkg/config"
	pkgredis "github.com/crauzier/catalogsearch/pkg/redis"
)

const keyPrefix = "search:"

// QueryCache caches ranked responses keyed by normalized query, filter
// mode, and limit.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a QueryCache over an open Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached response for a query, if present.
func (c *QueryCache) Get(ctx context.Context, query string, mode filter.Mode, limit int) (*pipeline.Response, bool) {
	key := c.buildKey(query, mode, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var resp pipeline.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &resp, true
}

// Set stores a response. Failures are logged, never propagated.
func (c *QueryCache) Set(ctx context.Context, query string, mode filter.Mode, limit int, resp *pipeline.Response) {
	key := c.buildKey(query, mode, limit)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response or computes and stores it. The
// bool reports whether the response came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	mode filter.Mode,
	limit int,
	computeFn func() (*pipeline.Response, error),
) (*pipeline.Response, bool, error) {
	if resp, ok := c.Get(ctx, query, mode, limit); ok {
		return resp, true, nil
	}
	key := c.buildKey(query, mode, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.Get(ctx, query, mode, limit); ok {
			return resp, nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, mode, limit, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*pipeline.Response), false, nil
}

// Invalidate flushes every cached response.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns process-local hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the query's canonical form. Case and surrounding
// whitespace are normalized away but word order is preserved: the
// exact-match signal compares the full query string against titles and
// brands, so reordered queries rank differently and must not share a key.
func (c *QueryCache) buildKey(query string, mode filter.Mode, limit int) string {
	canonical := strings.ToLower(strings.TrimSpace(query))
	raw := fmt.Sprintf("%s|mode=%s|limit=%d", canonical, mode.String(), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
