// Package seed fills a comment store with demo discussions. It goes through
// the comment service so every counter is maintained the normal way.
package seed

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/example/discussion-platform/services/discussion/internal/comments"
	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

type Options struct {
	Posts           int
	Users           int
	CommentsPerPost int
	// ReplyRatio is the chance that a new comment answers an earlier one.
	ReplyRatio  float64
	LikeRatio   float64
	DeleteRatio float64
	Seed        int64
}

func DefaultOptions() Options {
	return Options{
		Posts:           3,
		Users:           12,
		CommentsPerPost: 25,
		ReplyRatio:      0.6,
		LikeRatio:       0.3,
		DeleteRatio:     0.05,
		Seed:            42,
	}
}

type Summary struct {
	PostIDs  []string `json:"post_ids"`
	Comments int      `json:"comments"`
	Replies  int      `json:"replies"`
	Likes    int      `json:"likes"`
	Deleted  int      `json:"deleted"`
}

type Generator struct {
	svc  *comments.Service
	fake *gofakeit.Faker
	opts Options
}

func New(svc *comments.Service, opts Options) *Generator {
	d := DefaultOptions()
	if opts.Posts <= 0 {
		opts.Posts = d.Posts
	}
	if opts.Users <= 0 {
		opts.Users = d.Users
	}
	if opts.CommentsPerPost <= 0 {
		opts.CommentsPerPost = d.CommentsPerPost
	}
	return &Generator{svc: svc, fake: gofakeit.New(opts.Seed), opts: opts}
}

func (g *Generator) authors() []domain.Author {
	out := make([]domain.Author, g.opts.Users)
	for i := range out {
		username := g.fake.Username()
		avatar := fmt.Sprintf("https://i.pravatar.cc/150?u=%s", g.fake.UUID())
		out[i] = domain.Author{
			ID:          fmt.Sprintf("user-%03d", i+1),
			DisplayName: g.fake.Name(),
			Username:    &username,
			AvatarURL:   &avatar,
		}
	}
	return out
}

// Run creates the configured discussions and returns what it wrote.
func (g *Generator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	authors := g.authors()

	for p := 0; p < g.opts.Posts; p++ {
		postID := fmt.Sprintf("post-%d", p+1)
		sum.PostIDs = append(sum.PostIDs, postID)

		var written []domain.Comment
		for i := 0; i < g.opts.CommentsPerPost; i++ {
			author := authors[g.fake.IntRange(0, len(authors)-1)]
			in := comments.CreateInput{
				PostID:  postID,
				Author:  author,
				Content: g.fake.Paragraph(1, g.fake.IntRange(1, 3), g.fake.IntRange(6, 14), " "),
			}
			if len(written) > 0 && g.fake.Float64Range(0, 1) < g.opts.ReplyRatio {
				parent := written[g.fake.IntRange(0, len(written)-1)]
				in.ParentID = &parent.ID
			}
			c, err := g.svc.Create(ctx, in)
			if err != nil {
				return sum, fmt.Errorf("seed %s: %w", postID, err)
			}
			written = append(written, c)
			sum.Comments++
			if in.ParentID != nil {
				sum.Replies++
			}
		}

		for _, c := range written {
			for _, a := range authors {
				if g.fake.Float64Range(0, 1) >= g.opts.LikeRatio {
					continue
				}
				if _, err := g.svc.ToggleLike(ctx, c.ID, a.ID); err != nil {
					return sum, fmt.Errorf("seed like %s: %w", c.ID, err)
				}
				sum.Likes++
			}
		}

		for _, c := range written {
			if g.fake.Float64Range(0, 1) >= g.opts.DeleteRatio {
				continue
			}
			if err := g.svc.SoftDelete(ctx, c.ID, c.Author.ID); err != nil {
				return sum, fmt.Errorf("seed delete %s: %w", c.ID, err)
			}
			sum.Deleted++
		}
	}
	return sum, nil
}
