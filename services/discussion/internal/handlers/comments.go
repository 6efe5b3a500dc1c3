package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/discussion-platform/internal/platform/api"
	"github.com/example/discussion-platform/internal/platform/auth"
	"github.com/example/discussion-platform/services/discussion/internal/comments"
	"github.com/example/discussion-platform/services/discussion/internal/domain"
	"github.com/example/discussion-platform/services/discussion/internal/thread"
)

// CommentService is the subset of the comment engine the HTTP surface uses.
type CommentService interface {
	Create(ctx context.Context, in comments.CreateInput) (domain.Comment, error)
	Edit(ctx context.Context, commentID, requesterID, newContent string) (domain.Comment, error)
	SoftDelete(ctx context.Context, commentID, requesterID string) error
	ToggleLike(ctx context.Context, commentID, userID string) (domain.LikeResult, error)
	ListThread(ctx context.Context, postID string, opts comments.ThreadOptions) ([]*thread.Node, error)
	CountComments(ctx context.Context, postID string) (int, error)
	Get(ctx context.Context, commentID, viewerID string) (domain.CommentView, error)
	Reconcile(ctx context.Context, commentID string) (domain.Comment, error)
	View(c domain.Comment, viewerID string) domain.CommentView
}

type createCommentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parent_id,omitempty"`
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

type threadResponse struct {
	PostID   string         `json:"post_id"`
	Comments []*thread.Node `json:"comments"`
}

type countResponse struct {
	PostID string `json:"post_id"`
	Count  int    `json:"count"`
}

func viewerID(r *http.Request) string {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

// GetThread handles GET /v1/posts/{post_id}/comments
func GetThread(cs CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))

		rootsOnly := false
		if raw := strings.TrimSpace(r.URL.Query().Get("replies")); raw != "" {
			include, err := strconv.ParseBool(raw)
			if err != nil {
				api.BadRequest(w, "INVALID_QUERY", "replies must be true or false", requestID(r), nil)
				return
			}
			rootsOnly = !include
		}

		forest, err := cs.ListThread(r.Context(), postID, comments.ThreadOptions{RootsOnly: rootsOnly, ViewerID: viewerID(r)})
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, threadResponse{PostID: postID, Comments: forest})
	}
}

// CountComments handles GET /v1/posts/{post_id}/comments/count
func CountComments(cs CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		n, err := cs.CountComments(r.Context(), postID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, countResponse{PostID: postID, Count: n})
	}
}

// GetComment handles GET /v1/comments/{comment_id}
func GetComment(cs CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cs.Get(r.Context(), strings.TrimSpace(chi.URLParam(r, "comment_id")), viewerID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, v)
	}
}

// CreateComment handles POST /v1/posts/{post_id}/comments
func CreateComment(cs CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", requestID(r))
			return
		}

		var req createCommentRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", requestID(r), nil)
			return
		}
		parentID := req.ParentID
		if parentID != nil && strings.TrimSpace(*parentID) == "" {
			parentID = nil
		}

		created, err := cs.Create(r.Context(), comments.CreateInput{
			PostID: strings.TrimSpace(chi.URLParam(r, "post_id")),
			Author: domain.Author{
				ID:          id.UserID,
				DisplayName: id.Name,
				Username:    id.Username,
				AvatarURL:   id.Picture,
			},
			Content:  req.Content,
			ParentID: parentID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, cs.View(created, id.UserID))
	}
}

// UpdateComment handles PUT /v1/comments/{comment_id}
func UpdateComment(cs CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", requestID(r))
			return
		}

		var req updateCommentRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", requestID(r), nil)
			return
		}

		updated, err := cs.Edit(r.Context(), strings.TrimSpace(chi.URLParam(r, "comment_id")), userID, req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, cs.View(updated, userID))
	}
}

// DeleteComment handles DELETE /v1/comments/{comment_id}
func DeleteComment(cs CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", requestID(r))
			return
		}
		if err := cs.SoftDelete(r.Context(), strings.TrimSpace(chi.URLParam(r, "comment_id")), userID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// LikeComment handles POST /v1/comments/{comment_id}/like
func LikeComment(cs CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", requestID(r))
			return
		}
		res, err := cs.ToggleLike(r.Context(), strings.TrimSpace(chi.URLParam(r, "comment_id")), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}

// ReconcileComment handles POST /v1/admin/comments/{comment_id}/reconcile
func ReconcileComment(cs CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fixed, err := cs.Reconcile(r.Context(), strings.TrimSpace(chi.URLParam(r, "comment_id")))
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, cs.View(fixed, ""))
	}
}
