// Package store persists comment documents. Every backend offers point reads,
// upserts and a single-document atomic read-modify-write that retries on write
// conflicts up to a bounded budget.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/example/discussion-platform/internal/platform/observability"
	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

// MutateFunc edits a private copy of the current document. Returning an error
// aborts the transaction and nothing is written. It may run more than once
// when the store retries, so it must only touch the document and values it
// overwrites on every call.
type MutateFunc func(c *domain.Comment) error

// CommentStore defines the contract for comment persistence.
type CommentStore interface {
	// Create assigns a fresh id and persists c.
	Create(ctx context.Context, c domain.Comment) (domain.Comment, error)
	Get(ctx context.Context, id string) (domain.Comment, error)
	// Put upserts c under c.ID.
	Put(ctx context.Context, c domain.Comment) error
	// Transact atomically applies fn to the document stored under id.
	Transact(ctx context.Context, id string, fn MutateFunc) (domain.Comment, error)
	// ListByPost returns every comment attached to postID in no particular order.
	ListByPost(ctx context.Context, postID string) ([]domain.Comment, error)
	Ping(ctx context.Context) error
}

// TxOptions bounds the optimistic retry loop of Transact.
type TxOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultTxOptions returns the production retry budget.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
	}
}

func (o TxOptions) withDefaults() TxOptions {
	d := DefaultTxOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	return o
}

// errConflict is returned by a single transaction attempt that lost a race.
var errConflict = errors.New("write conflict")

// backoffDelay doubles per attempt with full jitter, capped at MaxDelay.
func (o TxOptions) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := o.BaseDelay << (attempt - 1)
	if d <= 0 || d > o.MaxDelay {
		d = o.MaxDelay
	}
	return time.Duration(rand.Int64N(int64(d)) + 1)
}

// retryTx runs attempt until it stops reporting errConflict or the budget is
// spent.
func retryTx(ctx context.Context, opts TxOptions, backend string, attempt func() (domain.Comment, error)) (domain.Comment, error) {
	const op = "store.Transact"
	opts = opts.withDefaults()
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, err)
		}
		c, err := attempt()
		if !errors.Is(err, errConflict) {
			return c, err
		}
		observability.StoreTxConflicts.WithLabelValues(backend).Inc()
		if n >= opts.MaxAttempts {
			observability.StoreTxExhausted.WithLabelValues(backend).Inc()
			return domain.Comment{}, domain.E(domain.ErrConflictExhausted, op, fmt.Sprintf("gave up after %d attempts", n))
		}
		t := time.NewTimer(opts.backoffDelay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return domain.Comment{}, domain.Wrap(domain.ErrUnavailable, op, ctx.Err())
		case <-t.C:
		}
	}
}

func notFound(op, id string) error {
	return domain.E(domain.ErrNotFound, op, "comment "+id)
}
