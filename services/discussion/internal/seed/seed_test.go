package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/discussion-platform/services/discussion/internal/comments"
	"github.com/example/discussion-platform/services/discussion/internal/store"
)

func TestRun(t *testing.T) {
	cs := store.NewInMemoryCommentStore()
	svc := comments.NewService(cs, zap.NewNop())
	opts := Options{Posts: 2, Users: 5, CommentsPerPost: 15, ReplyRatio: 0.7, LikeRatio: 0.5, DeleteRatio: 0.2, Seed: 7}

	sum, err := New(svc, opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"post-1", "post-2"}, sum.PostIDs)
	assert.Equal(t, 30, sum.Comments)
	assert.LessOrEqual(t, sum.Replies, sum.Comments)

	total := 0
	for _, postID := range sum.PostIDs {
		n, err := svc.CountComments(context.Background(), postID)
		require.NoError(t, err)
		total += n

		all, err := cs.ListByPost(context.Background(), postID)
		require.NoError(t, err)
		for _, c := range all {
			assert.Equal(t, len(c.LikedBy), c.Likes)
			live := 0
			for _, other := range all {
				if other.HasParent() && *other.ParentID == c.ID && !other.IsDeleted {
					live++
				}
			}
			assert.Equal(t, live, c.ReplyCount, "reply count of %s", c.ID)
		}
	}
	assert.Equal(t, sum.Comments, total)
}

func TestRun_Deterministic(t *testing.T) {
	run := func() Summary {
		svc := comments.NewService(store.NewInMemoryCommentStore(), zap.NewNop())
		sum, err := New(svc, Options{Seed: 99}).Run(context.Background())
		require.NoError(t, err)
		return sum
	}
	assert.Equal(t, run(), run())
}
