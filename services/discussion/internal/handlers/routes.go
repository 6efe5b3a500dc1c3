package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/example/discussion-platform/internal/platform/auth"
	"github.com/example/discussion-platform/internal/platform/ratelimit"
	"github.com/example/discussion-platform/services/discussion/internal/shares"
)

type Deps struct {
	Comments CommentService
	Shares   shares.Counter
	Verifier auth.JWTVerifier
	Limiter  *ratelimit.Limiter
}

// Register mounts the discussion API. Reads are public with an optional
// viewer; writes require a token and are rate limited per user.
func Register(r chi.Router, d Deps) {
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(d.Verifier))
		r.Get("/v1/posts/{post_id}/comments", GetThread(d.Comments))
		r.Get("/v1/posts/{post_id}/comments/count", CountComments(d.Comments))
		r.Get("/v1/comments/{comment_id}", GetComment(d.Comments))
		r.Get("/v1/shares/{content_id}", GetShares(d.Shares))
		r.With(d.Limiter.Middleware("record_share")).Post("/v1/shares/{content_id}", RecordShare(d.Shares))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(d.Verifier))
		r.With(d.Limiter.Middleware("create_comment")).Post("/v1/posts/{post_id}/comments", CreateComment(d.Comments))
		r.With(d.Limiter.Middleware("edit_comment")).Put("/v1/comments/{comment_id}", UpdateComment(d.Comments))
		r.With(d.Limiter.Middleware("delete_comment")).Delete("/v1/comments/{comment_id}", DeleteComment(d.Comments))
		r.With(d.Limiter.Middleware("like_comment")).Post("/v1/comments/{comment_id}/like", LikeComment(d.Comments))

		r.With(auth.RequireAdmin).Post("/v1/admin/comments/{comment_id}/reconcile", ReconcileComment(d.Comments))
	})
}
