// Package comments implements the threaded comment engine: creation, edits,
// soft deletes, like toggles and thread reads over a CommentStore.
package comments

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/example/discussion-platform/internal/platform/events"
	"github.com/example/discussion-platform/internal/platform/observability"
	"github.com/example/discussion-platform/services/discussion/internal/domain"
	"github.com/example/discussion-platform/services/discussion/internal/moderation"
	"github.com/example/discussion-platform/services/discussion/internal/store"
	"github.com/example/discussion-platform/services/discussion/internal/thread"
)

// Publisher receives domain events after a successful write.
type Publisher interface {
	Publish(subject, eventName, actorID string, props map[string]any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, string, map[string]any) {}

// CreateInput carries a new comment. ParentID is nil for a root comment.
type CreateInput struct {
	PostID   string
	Author   domain.Author
	Content  string
	ParentID *string
}

// ThreadOptions tunes ListThread. The zero value returns the full forest for
// an anonymous viewer.
type ThreadOptions struct {
	RootsOnly bool
	ViewerID  string
}

type Service struct {
	store  store.CommentStore
	policy *moderation.Policy
	events Publisher
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(cs store.CommentStore, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:  cs,
		policy: moderation.New(),
		events: nopPublisher{},
		log:    log,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// View renders c for viewerID with tombstone content redacted.
func (s *Service) View(c domain.Comment, viewerID string) domain.CommentView {
	return s.policy.Redact(c, viewerID)
}

// Create validates and persists a comment, then bumps the parent's reply
// counter in a separate transaction. Write conflicts on the parent are
// retried until ctx ends; an outage is logged and left for Reconcile, and the
// created comment is still returned.
func (s *Service) Create(ctx context.Context, in CreateInput) (out domain.Comment, err error) {
	const op = "comments.Create"
	ctx, done := s.track(ctx, "create", attribute.String("post_id", in.PostID))
	defer func() { done(err) }()

	if err = s.policy.ValidateID(op, "post id", in.PostID); err != nil {
		return domain.Comment{}, err
	}
	if err = s.policy.ValidateAuthor(op, in.Author); err != nil {
		return domain.Comment{}, err
	}
	content, err := s.policy.NormalizeContent(op, in.Content)
	if err != nil {
		return domain.Comment{}, err
	}

	var parentID *string
	if in.ParentID != nil {
		pid := *in.ParentID
		if err = s.policy.ValidateID(op, "parent id", pid); err != nil {
			return domain.Comment{}, err
		}
		parent, gerr := s.store.Get(ctx, pid)
		if errors.Is(gerr, domain.ErrNotFound) {
			return domain.Comment{}, domain.E(domain.ErrNotFound, op, "parent comment not found")
		}
		if gerr != nil {
			return domain.Comment{}, domain.Typed(op, gerr)
		}
		if parent.PostID != in.PostID {
			return domain.Comment{}, domain.E(domain.ErrNotFound, op, "parent comment belongs to another post")
		}
		parentID = &pid
	}

	now := s.now().UTC()
	author := domain.Comment{Author: in.Author}.Clone().Author
	created, err := s.store.Create(ctx, domain.Comment{
		PostID:     in.PostID,
		ParentID:   parentID,
		Author:     author,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
		IsApproved: true,
		LikedBy:    map[string]struct{}{},
	})
	if err != nil {
		return domain.Comment{}, domain.Typed(op, err)
	}

	if parentID != nil {
		s.adjustReplyCount(ctx, "create", *parentID, 1)
	}

	props := map[string]any{"comment_id": created.ID, "post_id": created.PostID}
	if parentID != nil {
		props["parent_id"] = *parentID
	}
	s.events.Publish(events.SubjectCommentCreated, "comment_created", created.Author.ID, props)
	return created, nil
}

// Edit replaces the content of a live comment owned by requesterID.
func (s *Service) Edit(ctx context.Context, commentID, requesterID, newContent string) (out domain.Comment, err error) {
	const op = "comments.Edit"
	ctx, done := s.track(ctx, "edit", attribute.String("comment_id", commentID))
	defer func() { done(err) }()

	if err = s.validateIDs(op, commentID, requesterID); err != nil {
		return domain.Comment{}, err
	}
	content, err := s.policy.NormalizeContent(op, newContent)
	if err != nil {
		return domain.Comment{}, err
	}
	if _, err = s.loadOwned(ctx, op, commentID, requesterID); err != nil {
		return domain.Comment{}, err
	}

	updated, err := s.store.Transact(ctx, commentID, func(c *domain.Comment) error {
		if err := s.checkLiveOwner(op, *c, requesterID); err != nil {
			return err
		}
		c.Content = content
		c.IsEdited = true
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return domain.Comment{}, domain.Typed(op, err)
	}

	s.events.Publish(events.SubjectCommentEdited, "comment_edited", requesterID,
		map[string]any{"comment_id": updated.ID, "post_id": updated.PostID})
	return updated, nil
}

// SoftDelete tombstones a comment. Repeating it returns NotFound. Only the
// call that flipped the flag decrements the parent's reply counter.
func (s *Service) SoftDelete(ctx context.Context, commentID, requesterID string) (err error) {
	const op = "comments.SoftDelete"
	ctx, done := s.track(ctx, "delete", attribute.String("comment_id", commentID))
	defer func() { done(err) }()

	if err = s.validateIDs(op, commentID, requesterID); err != nil {
		return err
	}
	if _, err = s.loadOwned(ctx, op, commentID, requesterID); err != nil {
		return err
	}

	deleted, err := s.store.Transact(ctx, commentID, func(c *domain.Comment) error {
		if err := s.checkLiveOwner(op, *c, requesterID); err != nil {
			return err
		}
		c.IsDeleted = true
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return domain.Typed(op, err)
	}

	if deleted.HasParent() {
		s.adjustReplyCount(ctx, "delete", *deleted.ParentID, -1)
	}
	s.events.Publish(events.SubjectCommentDeleted, "comment_deleted", requesterID,
		map[string]any{"comment_id": deleted.ID, "post_id": deleted.PostID})
	return nil
}

// ToggleLike adds or removes userID from the liked-by set in one
// transaction and recomputes likes from the set.
func (s *Service) ToggleLike(ctx context.Context, commentID, userID string) (out domain.LikeResult, err error) {
	const op = "comments.ToggleLike"
	ctx, done := s.track(ctx, "like", attribute.String("comment_id", commentID))
	defer func() { done(err) }()

	if err = s.validateIDs(op, commentID, userID); err != nil {
		return domain.LikeResult{}, err
	}

	var liked bool
	updated, err := s.store.Transact(ctx, commentID, func(c *domain.Comment) error {
		if c.IsDeleted {
			return domain.E(domain.ErrNotFound, op, "comment not found")
		}
		if c.LikedBy == nil {
			c.LikedBy = map[string]struct{}{}
		}
		if _, ok := c.LikedBy[userID]; ok {
			delete(c.LikedBy, userID)
			liked = false
		} else {
			c.LikedBy[userID] = struct{}{}
			liked = true
		}
		c.Likes = len(c.LikedBy)
		return nil
	})
	if err != nil {
		return domain.LikeResult{}, domain.Typed(op, err)
	}

	s.events.Publish(events.SubjectCommentLiked, "comment_liked", userID,
		map[string]any{"comment_id": updated.ID, "post_id": updated.PostID, "liked": liked, "likes": updated.Likes})
	return domain.LikeResult{Likes: updated.Likes, IsLiked: liked}, nil
}

// ListThread returns the visible comments of a post as a forest ordered by
// creation time.
func (s *Service) ListThread(ctx context.Context, postID string, opts ThreadOptions) (out []*thread.Node, err error) {
	const op = "comments.ListThread"
	ctx, done := s.track(ctx, "list_thread", attribute.String("post_id", postID), attribute.Bool("roots_only", opts.RootsOnly))
	defer func() { done(err) }()

	views, err := s.visibleViews(ctx, op, postID, opts.ViewerID)
	if err != nil {
		return nil, err
	}
	if opts.RootsOnly {
		roots := views[:0]
		for _, v := range views {
			if v.ParentID == nil {
				roots = append(roots, v)
			}
		}
		views = roots
	}
	return thread.Assemble(views), nil
}

// CountComments counts every node of the full forest, tombstones included.
func (s *Service) CountComments(ctx context.Context, postID string) (n int, err error) {
	const op = "comments.CountComments"
	ctx, done := s.track(ctx, "count", attribute.String("post_id", postID))
	defer func() { done(err) }()

	views, err := s.visibleViews(ctx, op, postID, "")
	if err != nil {
		return 0, err
	}
	return thread.Count(thread.Assemble(views)), nil
}

// Get returns a single visible comment.
func (s *Service) Get(ctx context.Context, commentID, viewerID string) (out domain.CommentView, err error) {
	const op = "comments.Get"
	ctx, done := s.track(ctx, "get", attribute.String("comment_id", commentID))
	defer func() { done(err) }()

	if err = s.policy.ValidateID(op, "comment id", commentID); err != nil {
		return domain.CommentView{}, err
	}
	c, err := s.store.Get(ctx, commentID)
	if err != nil {
		return domain.CommentView{}, domain.Typed(op, err)
	}
	if !s.policy.Visible(c) {
		return domain.CommentView{}, domain.E(domain.ErrNotFound, op, "comment not found")
	}
	return s.policy.Redact(c, viewerID), nil
}

// Reconcile recomputes replyCount from the live direct children and likes
// from the liked-by set, in one transaction on the target.
func (s *Service) Reconcile(ctx context.Context, commentID string) (out domain.Comment, err error) {
	const op = "comments.Reconcile"
	ctx, done := s.track(ctx, "reconcile", attribute.String("comment_id", commentID))
	defer func() { done(err) }()

	if err = s.policy.ValidateID(op, "comment id", commentID); err != nil {
		return domain.Comment{}, err
	}
	target, err := s.store.Get(ctx, commentID)
	if err != nil {
		return domain.Comment{}, domain.Typed(op, err)
	}
	siblings, err := s.store.ListByPost(ctx, target.PostID)
	if err != nil {
		return domain.Comment{}, domain.Typed(op, err)
	}
	live := 0
	for _, c := range siblings {
		if c.HasParent() && *c.ParentID == commentID && !c.IsDeleted {
			live++
		}
	}

	var before domain.Comment
	fixed, err := s.store.Transact(ctx, commentID, func(c *domain.Comment) error {
		before = *c
		c.ReplyCount = live
		c.Likes = len(c.LikedBy)
		return nil
	})
	if err != nil {
		return domain.Comment{}, domain.Typed(op, err)
	}
	if before.ReplyCount != fixed.ReplyCount || before.Likes != fixed.Likes {
		s.log.Info("comment counters reconciled",
			zap.String("comment_id", commentID),
			zap.Int("reply_count_before", before.ReplyCount),
			zap.Int("reply_count_after", fixed.ReplyCount),
			zap.Int("likes_before", before.Likes),
			zap.Int("likes_after", fixed.Likes),
		)
	}
	return fixed, nil
}

func (s *Service) visibleViews(ctx context.Context, op, postID, viewerID string) ([]domain.CommentView, error) {
	if err := s.policy.ValidateID(op, "post id", postID); err != nil {
		return nil, err
	}
	all, err := s.store.ListByPost(ctx, postID)
	if err != nil {
		return nil, domain.Typed(op, err)
	}
	visible := make([]domain.Comment, 0, len(all))
	for _, c := range all {
		if s.policy.Visible(c) {
			visible = append(visible, c)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].ID < visible[j].ID
		}
		return visible[i].CreatedAt.Before(visible[j].CreatedAt)
	})
	views := make([]domain.CommentView, len(visible))
	for i, c := range visible {
		views[i] = s.policy.Redact(c, viewerID)
	}
	return views, nil
}

func (s *Service) validateIDs(op, commentID, actorID string) error {
	if err := s.policy.ValidateID(op, "comment id", commentID); err != nil {
		return err
	}
	return s.policy.ValidateID(op, "user id", actorID)
}

// loadOwned fails fast before opening a transaction.
func (s *Service) loadOwned(ctx context.Context, op, commentID, requesterID string) (domain.Comment, error) {
	c, err := s.store.Get(ctx, commentID)
	if err != nil {
		return domain.Comment{}, domain.Typed(op, err)
	}
	if err := s.checkLiveOwner(op, c, requesterID); err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

func (s *Service) checkLiveOwner(op string, c domain.Comment, requesterID string) error {
	if c.IsDeleted {
		return domain.E(domain.ErrNotFound, op, "comment not found")
	}
	return s.policy.CheckOwner(op, c, requesterID)
}

// adjustReplyCount applies delta to the parent's counter. Losing the
// store's conflict budget is not final here: the update is retried until it
// lands or ctx ends, because the child write has already committed. Only a
// store outage or cancellation leaves drift behind for Reconcile.
func (s *Service) adjustReplyCount(ctx context.Context, op, parentID string, delta int) {
	for round := 1; ; round++ {
		_, err := s.store.Transact(ctx, parentID, func(p *domain.Comment) error {
			p.ReplyCount += delta
			if p.ReplyCount < 0 {
				p.ReplyCount = 0
			}
			return nil
		})
		if err == nil {
			return
		}
		if errors.Is(err, domain.ErrConflictExhausted) && sleepCtx(ctx, counterBackoff(round)) == nil {
			continue
		}

		observability.ReplyCounterDrift.WithLabelValues(op).Inc()
		s.log.Warn("parent reply counter not updated",
			zap.String("operation", op),
			zap.String("parent_id", parentID),
			zap.Int("delta", delta),
			zap.Int("rounds", round),
			zap.Error(err),
		)
		return
	}
}

// counterBackoff grows linearly with full jitter, capped at 100ms.
func counterBackoff(round int) time.Duration {
	d := time.Duration(round) * 5 * time.Millisecond
	if d > 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return time.Duration(rand.Int64N(int64(d)) + 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// track opens a span and returns the func that records the outcome.
func (s *Service) track(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "comments."+operation, attrs...)
	return ctx, func(err error) {
		observability.CommentOpLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		observability.CommentOps.WithLabelValues(operation, resultLabel(err)).Inc()
		observability.EndSpan(span, err)
	}
}

func resultLabel(err error) string {
	switch domain.KindOf(err) {
	case nil:
		if err != nil {
			return "unavailable"
		}
		return "ok"
	case domain.ErrInvalidInput:
		return "invalid_input"
	case domain.ErrNotFound:
		return "not_found"
	case domain.ErrPermissionDenied:
		return "permission_denied"
	case domain.ErrConflictExhausted:
		return "conflict_exhausted"
	default:
		return "unavailable"
	}
}
