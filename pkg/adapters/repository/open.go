// Package repository assembles the configured LinkRepository stack.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/cache"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// Store is the opened repository together with the resources behind it.
type Store struct {
	ports.LinkRepository
	db    *sqlite.SQLiteRepository
	redis *redis.Client
}

// Open connects to DATABASE_URL and, when REDIS_URL is set, puts the Redis
// lookup cache in front of it.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Store, error) {
	db, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL, cfg.StorageTimeout)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{LinkRepository: db, db: db}
	if cfg.RedisURL == "" {
		return store, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	log.WithField("ttl", cfg.CacheTTL.String()).Info("redis lookup cache enabled")
	store.redis = client
	store.LinkRepository = cache.NewCachedRepository(db, client, cfg.CacheTTL, log)
	return store, nil
}

func (s *Store) Close() error {
	var firstErr error
	if s.redis != nil {
		firstErr = s.redis.Close()
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
