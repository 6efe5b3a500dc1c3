package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MatchesOnlyItsKind(t *testing.T) {
	err := E(ErrNotFound, "comments.Edit", "comment c1")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, "comments.Edit: not found: comment c1", err.Error())
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(ErrUnavailable, "store.Get", cause)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(ErrUnavailable, "noop", nil))
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", E(ErrConflictExhausted, "tx", ""))
	assert.Equal(t, ErrConflictExhausted, KindOf(wrapped))
	assert.Nil(t, KindOf(errors.New("plain")))
}

func TestTyped_WrapsUntypedAsUnavailable(t *testing.T) {
	err := Typed("store.List", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	typed := E(ErrInvalidInput, "x", "")
	assert.Same(t, typed, Typed("x", typed))
}

func TestTyped_AttributesToCaller(t *testing.T) {
	inner := E(ErrNotFound, "store.Get", "comment c1")
	err := Typed("comments.Edit", inner)

	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "comments.Edit", de.Op)
	assert.Equal(t, ErrNotFound, KindOf(err))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "comments.Edit: not found: store.Get: not found: comment c1", err.Error())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(E(ErrUnavailable, "", "")))
	assert.True(t, Retryable(E(ErrConflictExhausted, "", "")))
	assert.False(t, Retryable(E(ErrNotFound, "", "")))
}

func TestComment_CloneDoesNotAlias(t *testing.T) {
	pid := "p"
	c := Comment{ID: "c", ParentID: &pid, LikedBy: map[string]struct{}{"u1": {}}}
	cp := c.Clone()
	cp.LikedBy["u2"] = struct{}{}
	*cp.ParentID = "changed"

	assert.Len(t, c.LikedBy, 1)
	assert.Equal(t, "p", *c.ParentID)
	assert.Equal(t, []string{"u1", "u2"}, cp.LikedByList())
}
