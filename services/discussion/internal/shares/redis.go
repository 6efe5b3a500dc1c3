package shares

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/discussion-platform/internal/platform/observability"
	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

const keyPrefix = "shares:"

func key(contentID string) string { return keyPrefix + contentID }

// RedisCounter keeps one JSON document per content item and updates it with
// WATCH/MULTI, retrying when another writer touched the key first.
type RedisCounter struct {
	rdb   redis.UniversalClient
	retry RetryOptions
	now   func() time.Time
}

func NewRedisCounter(rdb redis.UniversalClient, retry RetryOptions) *RedisCounter {
	return &RedisCounter{rdb: rdb, retry: retry.withDefaults(), now: time.Now}
}

func (r *RedisCounter) IncrementShare(ctx context.Context, contentID, platform string) (Stats, error) {
	const op = "shares.IncrementShare"
	c, err := normalize(op, contentID, platform)
	if err != nil {
		return Stats{}, err
	}
	k := key(c.ContentID)

	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		var out Stats
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			s, err := load(ctx, tx, k)
			if err != nil {
				return err
			}
			s.ContentID = c.ContentID
			apply(&s, c.Platform, r.now().UTC())
			data, err := json.Marshal(s)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, data, 0)
				return nil
			})
			if err == nil {
				out = s
			}
			return err
		}, k)
		if err == nil {
			observability.ShareIncrements.WithLabelValues(c.Platform).Inc()
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return Stats{}, domain.Wrap(domain.ErrUnavailable, op, err)
		}
		if attempt+1 < r.retry.MaxAttempts {
			if err := r.retry.sleep(ctx, attempt); err != nil {
				return Stats{}, domain.Wrap(domain.ErrUnavailable, op, err)
			}
		}
	}
	return Stats{}, domain.E(domain.ErrConflictExhausted, op, c.ContentID)
}

func (r *RedisCounter) Get(ctx context.Context, contentID string) (Stats, error) {
	const op = "shares.Get"
	c, err := normalize(op, contentID, "other")
	if err != nil {
		return Stats{}, err
	}
	s, err := load(ctx, r.rdb, key(c.ContentID))
	if err != nil {
		return Stats{}, domain.Wrap(domain.ErrUnavailable, op, err)
	}
	s.ContentID = c.ContentID
	return project(s, r.now().UTC()), nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, k string) (Stats, error) {
	raw, err := c.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return Stats{ByPlatform: map[string]int64{}}, nil
	}
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	if err := json.Unmarshal(raw, &s); err != nil {
		return Stats{}, err
	}
	return s, nil
}
