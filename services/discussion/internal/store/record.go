package store

import (
	"encoding/json"
	"time"

	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

// record is the serialized form shared by the badger and postgres backends.
type record struct {
	ID         string        `json:"id"`
	PostID     string        `json:"post_id"`
	ParentID   *string       `json:"parent_id,omitempty"`
	Author     domain.Author `json:"author"`
	Content    string        `json:"content"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	IsEdited   bool          `json:"is_edited"`
	IsApproved bool          `json:"is_approved"`
	IsDeleted  bool          `json:"is_deleted"`
	Likes      int           `json:"likes"`
	LikedBy    []string      `json:"liked_by"`
	ReplyCount int           `json:"reply_count"`
	Version    int64         `json:"version"`
}

func encodeComment(c domain.Comment) ([]byte, error) {
	return json.Marshal(record{
		ID:         c.ID,
		PostID:     c.PostID,
		ParentID:   c.ParentID,
		Author:     c.Author,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		IsEdited:   c.IsEdited,
		IsApproved: c.IsApproved,
		IsDeleted:  c.IsDeleted,
		Likes:      c.Likes,
		LikedBy:    c.LikedByList(),
		ReplyCount: c.ReplyCount,
		Version:    c.Version,
	})
}

func decodeComment(b []byte) (domain.Comment, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return domain.Comment{}, err
	}
	c := domain.Comment{
		ID:         r.ID,
		PostID:     r.PostID,
		ParentID:   r.ParentID,
		Author:     r.Author,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		IsEdited:   r.IsEdited,
		IsApproved: r.IsApproved,
		IsDeleted:  r.IsDeleted,
		Likes:      r.Likes,
		LikedBy:    make(map[string]struct{}, len(r.LikedBy)),
		ReplyCount: r.ReplyCount,
		Version:    r.Version,
	}
	for _, uid := range r.LikedBy {
		c.LikedBy[uid] = struct{}{}
	}
	return c, nil
}
