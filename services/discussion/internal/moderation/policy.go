// Package moderation validates comment input, enforces ownership and
// produces the redacted read view of a stored comment.
package moderation

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

const (
	// MaxContentRunes bounds comment content after trimming.
	MaxContentRunes = 2000
	// MaxIDBytes bounds every opaque identifier accepted from callers.
	MaxIDBytes = 128
)

// Policy is stateless apart from the cached validator.
type Policy struct {
	validate *validator.Validate
}

func New() *Policy {
	return &Policy{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// NormalizeContent trims content and checks its length in runes.
func (p *Policy) NormalizeContent(op, content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", domain.E(domain.ErrInvalidInput, op, "content must not be empty")
	}
	if !utf8.ValidString(trimmed) {
		return "", domain.E(domain.ErrInvalidInput, op, "content must be valid UTF-8")
	}
	if utf8.RuneCountInString(trimmed) > MaxContentRunes {
		return "", domain.E(domain.ErrInvalidInput, op, "content exceeds 2000 characters")
	}
	return trimmed, nil
}

// ValidateID checks an opaque identifier named field.
func (p *Policy) ValidateID(op, field, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.E(domain.ErrInvalidInput, op, field+" is required")
	}
	if len(id) > MaxIDBytes {
		return domain.E(domain.ErrInvalidInput, op, field+" is too long")
	}
	return nil
}

// ValidateAuthor checks the author snapshot struct tags.
func (p *Policy) ValidateAuthor(op string, a domain.Author) error {
	if err := p.ValidateID(op, "author id", a.ID); err != nil {
		return err
	}
	if err := p.validate.Struct(a); err != nil {
		return &domain.Error{Kind: domain.ErrInvalidInput, Op: op, Detail: "invalid author", Err: err}
	}
	return nil
}

// CheckOwner allows the mutation only when requesterID wrote the comment.
func (p *Policy) CheckOwner(op string, c domain.Comment, requesterID string) error {
	if c.Author.ID != requesterID {
		return domain.E(domain.ErrPermissionDenied, op, "only the author may modify this comment")
	}
	return nil
}

// Visible decides whether a comment appears in listings.
func (p *Policy) Visible(c domain.Comment) bool {
	return c.IsApproved
}

// Redact builds the read view. Tombstones lose their content; viewerID may
// be empty for anonymous reads.
func (p *Policy) Redact(c domain.Comment, viewerID string) domain.CommentView {
	v := domain.CommentView{
		ID:         c.ID,
		PostID:     c.PostID,
		Author:     c.Author,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		IsEdited:   c.IsEdited,
		IsDeleted:  c.IsDeleted,
		Likes:      c.Likes,
		ReplyCount: c.ReplyCount,
	}
	if c.ParentID != nil {
		pid := *c.ParentID
		v.ParentID = &pid
	}
	if c.Author.Username != nil {
		u := *c.Author.Username
		v.Author.Username = &u
	}
	if c.Author.AvatarURL != nil {
		a := *c.Author.AvatarURL
		v.Author.AvatarURL = &a
	}
	if c.IsDeleted {
		v.Content = domain.DeletedPlaceholder
	}
	if viewerID != "" {
		v.LikedByViewer = c.IsLikedBy(viewerID)
	}
	return v
}
