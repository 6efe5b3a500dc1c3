package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/discussion-platform/internal/platform/events"
	"github.com/example/discussion-platform/services/discussion/internal/domain"
	"github.com/example/discussion-platform/services/discussion/internal/shares"
)

// ShareClickedEvent is the payload on engagement.shares.clicked.
type ShareClickedEvent struct {
	EventID    string `json:"event_id"`
	ContentID  string `json:"content_id"`
	Platform   string `json:"platform"`
	OccurredAt string `json:"occurred_at,omitempty"`
}

const (
	durableName          = "discussion_shares"
	defaultBatchSize     = 100
	defaultBatchInterval = 2 * time.Second
)

type outcome int

const (
	ack outcome = iota
	nak
	term
)

// SharesConsumer applies share clicks from JetStream to the share counter.
type SharesConsumer struct {
	Counter       shares.Counter
	Log           *zap.Logger
	BatchSize     int
	BatchInterval time.Duration
}

// NewSharesConsumer takes the batch settings from config.WorkerConfig;
// non-positive values fall back to 100 messages every 2s.
func NewSharesConsumer(counter shares.Counter, log *zap.Logger, batchSize int, batchInterval time.Duration) *SharesConsumer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchInterval <= 0 {
		batchInterval = defaultBatchInterval
	}
	return &SharesConsumer{
		Counter:       counter,
		Log:           log,
		BatchSize:     batchSize,
		BatchInterval: batchInterval,
	}
}

// Run pulls batches until ctx is cancelled.
func (c *SharesConsumer) Run(ctx context.Context, js nats.JetStreamContext) error {
	sub, err := js.PullSubscribe(events.SubjectShareClicked, durableName)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	c.Log.Info("shares consumer started", zap.String("subject", events.SubjectShareClicked))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(c.BatchSize, nats.MaxWait(c.BatchInterval))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.Log.Warn("shares consumer: fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, m := range msgs {
			c.settle(m, c.process(ctx, m.Data))
		}
	}
}

func (c *SharesConsumer) process(ctx context.Context, data []byte) outcome {
	var ev ShareClickedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.Log.Warn("shares consumer: invalid event", zap.Error(err))
		return term
	}
	_, err := c.Counter.IncrementShare(ctx, ev.ContentID, ev.Platform)
	switch {
	case err == nil:
		return ack
	case errors.Is(err, domain.ErrInvalidInput):
		c.Log.Warn("shares consumer: rejected event",
			zap.String("event_id", ev.EventID),
			zap.String("content_id", ev.ContentID),
			zap.Error(err),
		)
		return term
	default:
		c.Log.Warn("shares consumer: increment failed",
			zap.String("event_id", ev.EventID),
			zap.String("content_id", ev.ContentID),
			zap.Error(err),
		)
		return nak
	}
}

func (c *SharesConsumer) settle(m *nats.Msg, o outcome) {
	var err error
	switch o {
	case ack:
		err = m.Ack()
	case nak:
		err = m.NakWithDelay(time.Second)
	case term:
		err = m.Term()
	}
	if err != nil {
		c.Log.Warn("shares consumer: settle", zap.Error(err))
	}
}
