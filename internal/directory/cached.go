// internal/directory/cached.go
package directory

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"poultry-review-engine/internal/common/database"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/models"
	"poultry-review-engine/internal/store"
)

const (
	poolKeyPrefix     = "reviewers:pool:"
	reviewerKeyPrefix = "reviewers:reviewer:"
	loadKeyPrefix     = "reviewers:load:"
)

// CachedDirectory is a Redis read-through over another Directory. Pools and
// reviewer lookups are hot on every transition; the upstream (Keycloak) is
// not built for that traffic. Cache failures degrade to the inner directory.
type CachedDirectory struct {
	inner  Directory
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedDirectory(inner Directory, redisClient *database.RedisClient, ttl time.Duration, log logger.Logger) *CachedDirectory {
	return &CachedDirectory{
		inner:  inner,
		redis:  redisClient,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "directory-cache"}),
	}
}

func (d *CachedDirectory) PoolFor(ctx context.Context, stage models.Stage) ([]models.Reviewer, error) {
	key := poolKeyPrefix + string(stage)
	if raw, err := d.redis.Get(ctx, key); err == nil {
		var pool []models.Reviewer
		if err := json.Unmarshal([]byte(raw), &pool); err == nil {
			return pool, nil
		}
	} else if err != redis.Nil {
		d.logger.Warn("pool cache read failed", map[string]interface{}{
			"stage": string(stage),
			"error": err.Error(),
		})
	}

	pool, err := d.inner.PoolFor(ctx, stage)
	if err != nil {
		return nil, err
	}
	d.cache(ctx, key, pool)
	return pool, nil
}

func (d *CachedDirectory) Get(ctx context.Context, id string) (*models.Reviewer, error) {
	key := reviewerKeyPrefix + id
	if raw, err := d.redis.Get(ctx, key); err == nil {
		var reviewer models.Reviewer
		if err := json.Unmarshal([]byte(raw), &reviewer); err == nil {
			return &reviewer, nil
		}
	} else if err != redis.Nil {
		d.logger.Warn("reviewer cache read failed", map[string]interface{}{
			"reviewerId": id,
			"error":      err.Error(),
		})
	}

	reviewer, err := d.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache(ctx, key, reviewer)
	return reviewer, nil
}

// Invalidate drops the cached pools and reviewer entries, forcing the next
// read back to the source. Roster admin tooling calls it after changes.
func (d *CachedDirectory) Invalidate(ctx context.Context, reviewerIDs ...string) error {
	keys := make([]string, 0, len(reviewerIDs)+len(models.ReviewStages))
	for _, stage := range models.ReviewStages {
		keys = append(keys, poolKeyPrefix+string(stage))
	}
	for _, id := range reviewerIDs {
		keys = append(keys, reviewerKeyPrefix+id)
	}
	return d.redis.Del(ctx, keys...)
}

func (d *CachedDirectory) cache(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := d.redis.Set(ctx, key, string(data), d.ttl); err != nil {
		d.logger.Warn("cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// LoadCache caches reviewer open-item counts so auto-assignment does not
// hammer the database with COUNT queries. Loads are eventually consistent
// within the TTL, which balancing tolerates.
type LoadCache struct {
	store  store.Store
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewLoadCache(st store.Store, redisClient *database.RedisClient, ttl time.Duration, log logger.Logger) *LoadCache {
	return &LoadCache{
		store:  st,
		redis:  redisClient,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "load-cache"}),
	}
}

func (c *LoadCache) LoadOf(ctx context.Context, reviewerID string) (int, error) {
	key := loadKeyPrefix + reviewerID
	if raw, err := c.redis.Get(ctx, key); err == nil {
		if load, convErr := strconv.Atoi(raw); convErr == nil {
			return load, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("load cache read failed", map[string]interface{}{
			"reviewerId": reviewerID,
			"error":      err.Error(),
		})
	}

	load, err := c.store.CountAssigned(ctx, reviewerID)
	if err != nil {
		return 0, err
	}
	if err := c.redis.Set(ctx, key, strconv.Itoa(load), c.ttl); err != nil {
		c.logger.Warn("load cache write failed", map[string]interface{}{
			"reviewerId": reviewerID,
			"error":      err.Error(),
		})
	}
	return load, nil
}
