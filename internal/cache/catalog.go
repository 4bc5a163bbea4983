// Package cache memoizes catalog query results in Redis.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

const (
	// versionKey is bumped on every invalidation so older entries become unreachable
	versionKey = "quickquid:catalog:version"
	entryKey   = "quickquid:catalog:v%d:%s"
)

// Catalog is a marketplace.QueryCache backed by Redis. Failures degrade to
// cache misses.
type Catalog struct {
	rdb redis.Cmdable
	ttl time.Duration
	log zerolog.Logger
}

var _ marketplace.QueryCache = (*Catalog)(nil)

// NewClient builds the redis client shared by the cache and the task queue
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewCatalog(rdb redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *Catalog {
	return &Catalog{rdb: rdb, ttl: ttl, log: logger.With().Str("component", "catalog_cache").Logger()}
}

func (c *Catalog) version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func entry(version int64, key string) string {
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf(entryKey, version, hex.EncodeToString(sum[:]))
}

func (c *Catalog) Get(ctx context.Context, key string) (*marketplace.QueryResult, int64, bool) {
	v, err := c.version(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("catalog cache version lookup failed")
		return nil, -1, false
	}
	raw, err := c.rdb.Get(ctx, entry(v, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Msg("catalog cache read failed")
		}
		return nil, v, false
	}
	var res marketplace.QueryResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.Warn().Err(err).Msg("catalog cache entry corrupt")
		return nil, v, false
	}
	return &res, v, true
}

// Set stores res under the generation returned by the Get that missed.
func (c *Catalog) Set(ctx context.Context, key string, generation int64, res *marketplace.QueryResult) {
	if generation < 0 {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		c.log.Warn().Err(err).Msg("catalog cache encode failed")
		return
	}
	if err := c.rdb.Set(ctx, entry(generation, key), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("catalog cache write failed")
	}
}

func (c *Catalog) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		c.log.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}
