package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/quillsearch/quill/internal/query"
	"github.com/quillsearch/quill/pkg/config"
	"github.com/quillsearch/quill/pkg/metrics"
)

// Cache is a Redis-backed query-result cache. Keys include the table of
// contents generation, so every commit naturally invalidates stale entries.
// Concurrent identical queries collapse onto one execution via singleflight.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCache connects to Redis. m may be nil.
func NewCache(ctx context.Context, cfg config.CacheConfig, m *metrics.Metrics) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "querycache"),
	}, nil
}

func cacheKey(generation uint64, q query.Query, limit int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s", generation, limit, q.String())))
	return "quill:search:" + hex.EncodeToString(h[:])
}

// do returns a cached result or runs fn once for all concurrent callers of
// the same key. Cache failures degrade to running the search.
func (c *Cache) do(ctx context.Context, generation uint64, q query.Query, limit int, fn func() (*Results, error)) (*Results, error) {
	key := cacheKey(generation, q, limit)

	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var res Results
		if err := json.Unmarshal(data, &res); err == nil {
			if c.metrics != nil {
				c.metrics.CacheHitsTotal.Inc()
				c.metrics.SearchLatency.WithLabelValues("hit").Observe(0)
			}
			return &res, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
	} else if err != redis.Nil {
		c.logger.Warn("cache read failed", "error", err)
	}
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := fn()
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(res); err == nil {
			if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.logger.Warn("cache write failed", "error", err)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Results), nil
}

func (c *Cache) Close() error { return c.client.Close() }
