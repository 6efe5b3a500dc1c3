// Package domain holds the comment record, its read view and the error
// taxonomy shared by every layer of the discussion service.
package domain

import (
	"sort"
	"time"
)

// Author is the identity snapshot captured when a comment is created.
// It is never refreshed from later profile edits.
type Author struct {
	ID          string  `json:"id" validate:"required,max=128"`
	DisplayName string  `json:"display_name" validate:"required,max=100"`
	Username    *string `json:"username,omitempty" validate:"omitempty,max=64"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=2048"`
}

// Comment is the stored document.
type Comment struct {
	ID         string              `json:"id"`
	PostID     string              `json:"post_id"`
	ParentID   *string             `json:"parent_id,omitempty"`
	Author     Author              `json:"author"`
	Content    string              `json:"content"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	IsEdited   bool                `json:"is_edited"`
	IsApproved bool                `json:"is_approved"`
	IsDeleted  bool                `json:"is_deleted"`
	Likes      int                 `json:"likes"`
	LikedBy    map[string]struct{} `json:"-"`
	ReplyCount int                 `json:"reply_count"`

	// Version is bumped by the store on every committed write.
	Version int64 `json:"-"`
}

// Clone returns a deep copy so callers never share LikedBy or ParentID with
// the store's copy.
func (c Comment) Clone() Comment {
	out := c
	if c.ParentID != nil {
		pid := *c.ParentID
		out.ParentID = &pid
	}
	if c.Author.Username != nil {
		u := *c.Author.Username
		out.Author.Username = &u
	}
	if c.Author.AvatarURL != nil {
		a := *c.Author.AvatarURL
		out.Author.AvatarURL = &a
	}
	out.LikedBy = make(map[string]struct{}, len(c.LikedBy))
	for uid := range c.LikedBy {
		out.LikedBy[uid] = struct{}{}
	}
	return out
}

// HasParent reports whether the comment is a reply.
func (c Comment) HasParent() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// IsLikedBy reports whether userID is in the liked-by set.
func (c Comment) IsLikedBy(userID string) bool {
	_, ok := c.LikedBy[userID]
	return ok
}

// LikedByList returns the liked-by set as a sorted slice.
func (c Comment) LikedByList() []string {
	out := make([]string, 0, len(c.LikedBy))
	for uid := range c.LikedBy {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

// LikeResult is returned by a like toggle.
type LikeResult struct {
	Likes   int  `json:"likes"`
	IsLiked bool `json:"is_liked"`
}

// DeletedPlaceholder replaces the content of a tombstone in every read view.
const DeletedPlaceholder = "[deleted]"

// CommentView is the read-side projection of a comment. It never carries
// the liked-by set and never carries the content of a tombstone.
type CommentView struct {
	ID            string    `json:"id"`
	PostID        string    `json:"post_id"`
	ParentID      *string   `json:"parent_id,omitempty"`
	Author        Author    `json:"author"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	IsEdited      bool      `json:"is_edited"`
	IsDeleted     bool      `json:"is_deleted"`
	Likes         int       `json:"likes"`
	LikedByViewer bool      `json:"liked_by_viewer"`
	ReplyCount    int       `json:"reply_count"`
}
