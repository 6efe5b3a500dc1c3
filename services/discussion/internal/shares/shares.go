// Package shares counts share-button clicks per content item with weekly
// and monthly rolling windows. It lives on storage separate from comments.
package shares

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

const (
	WeekWindow  = 7 * 24 * time.Hour
	MonthWindow = 30 * 24 * time.Hour
)

// Stats is the share document of one content item.
type Stats struct {
	ContentID    string           `json:"content_id"`
	Total        int64            `json:"total"`
	Weekly       int64            `json:"weekly"`
	Monthly      int64            `json:"monthly"`
	ByPlatform   map[string]int64 `json:"by_platform"`
	WeekStart    time.Time        `json:"week_start"`
	MonthStart   time.Time        `json:"month_start"`
	LastSharedAt time.Time        `json:"last_shared_at"`
}

// Counter records and reads share stats.
type Counter interface {
	IncrementShare(ctx context.Context, contentID, platform string) (Stats, error)
	Get(ctx context.Context, contentID string) (Stats, error)
}

type click struct {
	ContentID string `validate:"required,max=128"`
	Platform  string `validate:"required,oneof=twitter facebook linkedin reddit telegram whatsapp email copy_link other"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalize lower-cases the platform and validates the click.
func normalize(op, contentID, platform string) (click, error) {
	c := click{ContentID: strings.TrimSpace(contentID), Platform: strings.ToLower(strings.TrimSpace(platform))}
	if err := validate.Struct(c); err != nil {
		return click{}, &domain.Error{Kind: domain.ErrInvalidInput, Op: op, Detail: "invalid share click", Err: err}
	}
	return c, nil
}

// apply records one click at now. A window whose start lies a full period in
// the past restarts at now before counting.
func apply(s *Stats, platform string, now time.Time) {
	if s.ByPlatform == nil {
		s.ByPlatform = map[string]int64{}
	}
	if s.WeekStart.IsZero() || now.Sub(s.WeekStart) >= WeekWindow {
		s.WeekStart = now
		s.Weekly = 0
	}
	if s.MonthStart.IsZero() || now.Sub(s.MonthStart) >= MonthWindow {
		s.MonthStart = now
		s.Monthly = 0
	}
	s.Total++
	s.Weekly++
	s.Monthly++
	s.ByPlatform[platform]++
	s.LastSharedAt = now
}

// project hides windows that expired since the last write without storing.
func project(s Stats, now time.Time) Stats {
	if !s.WeekStart.IsZero() && now.Sub(s.WeekStart) >= WeekWindow {
		s.Weekly = 0
	}
	if !s.MonthStart.IsZero() && now.Sub(s.MonthStart) >= MonthWindow {
		s.Monthly = 0
	}
	if s.ByPlatform == nil {
		s.ByPlatform = map[string]int64{}
	}
	return s
}

func (s Stats) clone() Stats {
	out := s
	out.ByPlatform = make(map[string]int64, len(s.ByPlatform))
	for k, v := range s.ByPlatform {
		out.ByPlatform[k] = v
	}
	return out
}

// RetryOptions bounds the optimistic increment loop.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{MaxAttempts: 5, BaseDelay: 2 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
}

func (o RetryOptions) withDefaults() RetryOptions {
	d := DefaultRetryOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	return o
}

func (o RetryOptions) sleep(ctx context.Context, attempt int) error {
	ceiling := o.BaseDelay << attempt
	if ceiling <= 0 || ceiling > o.MaxDelay {
		ceiling = o.MaxDelay
	}
	t := time.NewTimer(time.Duration(rand.Int64N(int64(ceiling) + 1)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
