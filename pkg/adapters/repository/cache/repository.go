// Package cache wraps a LinkRepository with a Redis cache-aside layer for
// short code lookups. Writes go to the backend first and then drop the key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const defaultTTL = 10 * time.Minute

// Client is the subset of redis.Cmdable used by the cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type CachedRepository struct {
	ports.LinkRepository
	client    Client
	ttl       time.Duration
	keyPrefix string
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewCachedRepository(backend ports.LinkRepository, client Client, ttl time.Duration, log logrus.FieldLogger) *CachedRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedRepository{
		LinkRepository: backend,
		client:         client,
		ttl:            ttl,
		keyPrefix:      "link:",
		log:            log,
		now:            time.Now,
	}
}

func (r *CachedRepository) key(code string) string {
	return r.keyPrefix + code
}

// GetByShortCode serves from Redis when possible. Redis failures fall back to
// the backend.
func (r *CachedRepository) GetByShortCode(ctx context.Context, code string) (*domain.Link, error) {
	data, err := r.client.Get(ctx, r.key(code)).Bytes()
	switch {
	case err == nil:
		var link domain.Link
		if jsonErr := json.Unmarshal(data, &link); jsonErr == nil {
			return &link, nil
		}
		r.invalidate(ctx, code)
	case !errors.Is(err, redis.Nil):
		r.log.WithError(err).WithField("short_code", code).Warn("cache read failed")
	}

	link, err := r.LinkRepository.GetByShortCode(ctx, code)
	if err != nil || link == nil {
		return link, err
	}
	r.store(ctx, link)
	return link, nil
}

// store caches the summary projection. The TTL never outlives the link's
// expiry, so expired links drop out before the sweeper removes them.
func (r *CachedRepository) store(ctx context.Context, link *domain.Link) {
	ttl := r.ttl
	if link.ExpiresAt != nil {
		if untilExpiry := link.ExpiresAt.Sub(r.now()); untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(link.Summary())
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.key(link.ShortCode), data, ttl).Err(); err != nil {
		r.log.WithError(err).WithField("short_code", link.ShortCode).Warn("cache write failed")
	}
}

func (r *CachedRepository) invalidate(ctx context.Context, code string) {
	if err := r.client.Del(ctx, r.key(code)).Err(); err != nil {
		r.log.WithError(err).WithField("short_code", code).Warn("cache invalidate failed")
	}
}

func (r *CachedRepository) Update(ctx context.Context, link *domain.Link) error {
	if err := r.LinkRepository.Update(ctx, link); err != nil {
		return err
	}
	r.invalidate(ctx, link.ShortCode)
	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, link *domain.Link) error {
	if err := r.LinkRepository.Delete(ctx, link); err != nil {
		return err
	}
	r.invalidate(ctx, link.ShortCode)
	return nil
}

// RecordClick drops the cached copy so the next read sees the new click count.
func (r *CachedRepository) RecordClick(ctx context.Context, link *domain.Link, click *domain.Click) error {
	if err := r.LinkRepository.RecordClick(ctx, link, click); err != nil {
		return err
	}
	r.invalidate(ctx, link.ShortCode)
	return nil
}

// Ensure interface compliance
var _ ports.LinkRepository = (*CachedRepository)(nil)
var _ Client = (*redis.Client)(nil)
