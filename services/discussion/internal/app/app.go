// Package app wires the discussion service's storage backends from config.
// Both the server and discussionctl build their dependencies here.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/discussion-platform/internal/platform/badgerdb"
	"github.com/example/discussion-platform/internal/platform/config"
	"github.com/example/discussion-platform/internal/platform/db"
	"github.com/example/discussion-platform/internal/platform/redisconn"
	"github.com/example/discussion-platform/services/discussion/internal/shares"
	"github.com/example/discussion-platform/services/discussion/internal/store"
)

// OpenStore selects the comment store backend named by cfg.Store.Backend.
// The returned close func is never nil.
func OpenStore(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (store.CommentStore, func(), error) {
	tx := store.TxOptions{MaxAttempts: cfg.Store.TxMaxAttempts}

	switch cfg.Store.Backend {
	case "badger":
		bcfg := badgerdb.DefaultConfig(cfg.Store.BadgerPath)
		bcfg.Logger = log.Named("badger")
		bdb, err := badgerdb.Open(bcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		log.Info("comment store ready", zap.String("backend", "badger"), zap.String("path", cfg.Store.BadgerPath))
		return store.NewBadgerCommentStore(bdb.DB, tx), func() {
			if err := bdb.Close(); err != nil {
				log.Warn("badger close failed", zap.Error(err))
			}
		}, nil

	case "postgres":
		octx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := db.Open(octx, cfg.Store.DatabaseURL, db.PoolOptions{ApplicationName: cfg.ServiceName})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		ps := store.NewPostgresCommentStore(pool, tx)
		if err := ps.EnsureSchema(octx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure comment schema: %w", err)
		}
		log.Info("comment store ready", zap.String("backend", "postgres"))
		return ps, pool.Close, nil

	default:
		if cfg.IsProduction() {
			return nil, nil, fmt.Errorf("in-memory comment store is not allowed in production")
		}
		log.Warn("using in-memory comment store (development only)")
		return store.NewInMemoryCommentStore(), func() {}, nil
	}
}

// OpenShares returns the Redis share counter when REDIS_URL is set and the
// in-memory one otherwise.
func OpenShares(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (shares.Counter, func(), error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, share counters are kept in memory")
		return shares.NewInMemoryCounter(time.Now), func() {}, nil
	}
	rdb, err := redisconn.Open(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open share counter: %w", err)
	}
	log.Info("share counter ready", zap.String("backend", "redis"))
	return shares.NewRedisCounter(rdb, shares.DefaultRetryOptions()), func() {
		_ = rdb.Close()
	}, nil
}
