package shares

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{cur: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func newRedisCounter(t *testing.T, clock *fakeClock, retry RetryOptions) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewRedisCounter(rdb, retry)
	c.now = clock.Now
	return c, mr
}

func backends(t *testing.T, clock *fakeClock) map[string]Counter {
	rc, _ := newRedisCounter(t, clock, RetryOptions{})
	return map[string]Counter{
		"memory": NewInMemoryCounter(clock.Now),
		"redis":  rc,
	}
}

func TestCounterInterface(t *testing.T) {
	var _ Counter = (*InMemoryCounter)(nil)
	var _ Counter = (*RedisCounter)(nil)
}

func TestCounter_IncrementAndGet(t *testing.T) {
	for name, c := range backends(t, newClock()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := c.Get(ctx, "post-1")
			require.NoError(t, err)
			assert.Zero(t, empty.Total)
			assert.NotNil(t, empty.ByPlatform)

			_, err = c.IncrementShare(ctx, "post-1", "Twitter")
			require.NoError(t, err)
			s, err := c.IncrementShare(ctx, "post-1", "reddit")
			require.NoError(t, err)
			assert.Equal(t, int64(2), s.Total)
			assert.Equal(t, int64(2), s.Weekly)
			assert.Equal(t, int64(2), s.Monthly)
			assert.Equal(t, map[string]int64{"twitter": 1, "reddit": 1}, s.ByPlatform)

			got, err := c.Get(ctx, "post-1")
			require.NoError(t, err)
			assert.Equal(t, s.Total, got.Total)
			assert.Equal(t, "post-1", got.ContentID)
		})
	}
}

func TestCounter_RejectsBadInput(t *testing.T) {
	for name, c := range backends(t, newClock()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := c.IncrementShare(ctx, "post-1", "carrier-pigeon")
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			_, err = c.IncrementShare(ctx, " ", "twitter")
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			_, err = c.Get(ctx, "")
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestCounter_RollingWindows(t *testing.T) {
	clock := newClock()
	for name, c := range backends(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := "post-" + name

			_, err := c.IncrementShare(ctx, id, "email")
			require.NoError(t, err)

			clock.Advance(8 * 24 * time.Hour)
			before, err := c.Get(ctx, id)
			require.NoError(t, err)
			assert.Zero(t, before.Weekly)
			assert.Equal(t, int64(1), before.Monthly)

			s, err := c.IncrementShare(ctx, id, "email")
			require.NoError(t, err)
			assert.Equal(t, int64(1), s.Weekly)
			assert.Equal(t, int64(2), s.Monthly)
			assert.Equal(t, int64(2), s.Total)

			clock.Advance(30 * 24 * time.Hour)
			s, err = c.IncrementShare(ctx, id, "email")
			require.NoError(t, err)
			assert.Equal(t, int64(1), s.Weekly)
			assert.Equal(t, int64(1), s.Monthly)
			assert.Equal(t, int64(3), s.Total)
		})
	}
}

func TestRedisCounter_ConcurrentIncrements(t *testing.T) {
	c, mr := newRedisCounter(t, newClock(), RetryOptions{MaxAttempts: 200, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond})
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.IncrementShare(ctx, "hot", []string{"twitter", "reddit"}[i%2])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s, err := c.Get(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, int64(n), s.Total)
	assert.Equal(t, int64(n/2), s.ByPlatform["twitter"])
	assert.True(t, mr.Exists("shares:hot"))
}

func TestRedisCounter_Unavailable(t *testing.T) {
	c, mr := newRedisCounter(t, newClock(), RetryOptions{})
	mr.Close()

	_, err := c.IncrementShare(context.Background(), "post-1", "twitter")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	_, err = c.Get(context.Background(), "post-1")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestInMemoryCounter_Concurrent(t *testing.T) {
	c := NewInMemoryCounter(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.IncrementShare(context.Background(), fmt.Sprintf("post-%d", i%5), "copy_link")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s, err := c.Get(context.Background(), "post-0")
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.Total)
}
