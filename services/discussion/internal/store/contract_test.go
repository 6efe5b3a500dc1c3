package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/discussion-platform/internal/platform/badgerdb"
	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

func TestCommentStoreInterface(t *testing.T) {
	var _ CommentStore = (*InMemoryCommentStore)(nil)
	var _ CommentStore = (*BadgerCommentStore)(nil)
	var _ CommentStore = (*PostgresCommentStore)(nil)
}

// backends returns every store that runs in-process. Badger gets a large
// budget here so atomicity is tested apart from exhaustion.
func backends(t *testing.T) map[string]CommentStore {
	t.Helper()
	db, err := badgerdb.Open(badgerdb.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]CommentStore{
		"memory": NewInMemoryCommentStore(),
		"badger": NewBadgerCommentStore(db.DB, TxOptions{MaxAttempts: 100, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
	}
}

func newComment(postID, content string) domain.Comment {
	return domain.Comment{
		PostID:     postID,
		Author:     domain.Author{ID: "user-a", DisplayName: "A"},
		Content:    content,
		IsApproved: true,
		LikedBy:    map[string]struct{}{},
	}
}

func TestStore_CreateGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := s.Create(ctx, newComment("post-1", "hello"))
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.False(t, created.CreatedAt.IsZero())

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, "hello", got.Content)
			assert.Equal(t, "post-1", got.PostID)
			assert.True(t, got.IsApproved)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "nope")
			assert.ErrorIs(t, err, domain.ErrNotFound)

			_, err = s.Transact(context.Background(), "nope", func(*domain.Comment) error { return nil })
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStore_PutUpserts(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newComment("post-1", "first")
			c.ID = "fixed-id"
			c.CreatedAt = time.Now().UTC()
			require.NoError(t, s.Put(ctx, c))

			c.Content = "second"
			require.NoError(t, s.Put(ctx, c))

			got, err := s.Get(ctx, "fixed-id")
			require.NoError(t, err)
			assert.Equal(t, "second", got.Content)

			list, err := s.ListByPost(ctx, "post-1")
			require.NoError(t, err)
			assert.Len(t, list, 1)

			assert.ErrorIs(t, s.Put(ctx, newComment("post-1", "no id")), domain.ErrInvalidInput)
		})
	}
}

func TestStore_ListByPostFilters(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				_, err := s.Create(ctx, newComment("post-1", fmt.Sprintf("c%d", i)))
				require.NoError(t, err)
			}
			_, err := s.Create(ctx, newComment("post-10", "other"))
			require.NoError(t, err)

			list, err := s.ListByPost(ctx, "post-1")
			require.NoError(t, err)
			assert.Len(t, list, 3)
			for _, c := range list {
				assert.Equal(t, "post-1", c.PostID)
			}
		})
	}
}

func TestStore_TransactAppliesAndKeepsIdentity(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, err := s.Create(ctx, newComment("post-1", "x"))
			require.NoError(t, err)

			out, err := s.Transact(ctx, c.ID, func(doc *domain.Comment) error {
				doc.ReplyCount++
				doc.LikedBy["user-b"] = struct{}{}
				doc.ID = "hijack"
				doc.PostID = "other-post"
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, c.ID, out.ID)
			assert.Equal(t, "post-1", out.PostID)
			assert.Greater(t, out.Version, c.Version)

			got, err := s.Get(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, got.ReplyCount)
			assert.True(t, got.IsLikedBy("user-b"))
		})
	}
}

func TestStore_TransactAbortWritesNothing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, err := s.Create(ctx, newComment("post-1", "x"))
			require.NoError(t, err)

			sentinel := errors.New("abort")
			_, err = s.Transact(ctx, c.ID, func(doc *domain.Comment) error {
				doc.Content = "mutated"
				return sentinel
			})
			assert.ErrorIs(t, err, sentinel)

			got, err := s.Get(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, "x", got.Content)
		})
	}
}

func TestStore_ConcurrentIncrementsAreNotLost(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, err := s.Create(ctx, newComment("post-1", "parent"))
			require.NoError(t, err)

			const workers = 16
			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Transact(ctx, c.ID, func(doc *domain.Comment) error {
						doc.ReplyCount++
						return nil
					})
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			got, err := s.Get(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, workers, got.ReplyCount)
		})
	}
}

func TestBadger_ExhaustedTransactWritesNothing(t *testing.T) {
	db, err := badgerdb.Open(badgerdb.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewBadgerCommentStore(db.DB, DefaultTxOptions())

	ctx := context.Background()
	c, err := s.Create(ctx, newComment("post-1", "parent"))
	require.NoError(t, err)

	const workers = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transact(ctx, c.ID, func(doc *domain.Comment) error {
				doc.ReplyCount++
				return nil
			})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrConflictExhausted)
				return
			}
			mu.Lock()
			committed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, committed, got.ReplyCount)
}
