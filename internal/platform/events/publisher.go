// Package events publishes discussion domain events to NATS JetStream and
// names the subjects shared with downstream consumers.
package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/discussion-platform/internal/platform/observability"
)

// Subjects.
const (
	SubjectCommentCreated = "discussion.comments.created"
	SubjectCommentEdited  = "discussion.comments.edited"
	SubjectCommentDeleted = "discussion.comments.deleted"
	SubjectCommentLiked   = "discussion.comments.liked"
	SubjectShareClicked   = "engagement.shares.clicked"
)

// Streams and the subject filters they own.
const (
	StreamDiscussion = "DISCUSSION_EVENTS"
	StreamEngagement = "ENGAGEMENT_EVENTS"

	discussionSubjects = "discussion.>"
	engagementSubjects = "engagement.>"
)

// Event is the envelope sent on every discussion.* subject.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	ActorID    string         `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

type asyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// Publisher publishes events fire-and-forget. A nil *Publisher and one built
// with a nil JetStream context are both no-ops.
type Publisher struct {
	js  asyncPublisher
	log *zap.Logger
	now func() time.Time
}

func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	if js == nil {
		return &Publisher{log: log, now: time.Now}
	}
	return &Publisher{js: js, log: log, now: time.Now}
}

// Publish never fails the caller; errors are logged and counted.
func (p *Publisher) Publish(subject, eventName, actorID string, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	ev := Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		ActorID:    actorID,
		OccurredAt: p.now().UTC(),
		Properties: props,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		observability.EventsPublishFailures.WithLabelValues(subject).Inc()
		p.log.Warn("events: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		observability.EventsPublishFailures.WithLabelValues(subject).Inc()
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

type streamManager interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStreams creates or widens the discussion and engagement streams.
func EnsureStreams(js nats.JetStreamContext) error {
	return ensureStreams(js)
}

func ensureStreams(m streamManager) error {
	if err := ensureStream(m, StreamDiscussion, discussionSubjects); err != nil {
		return err
	}
	return ensureStream(m, StreamEngagement, engagementSubjects)
}

func ensureStream(m streamManager, name, subject string) error {
	info, err := m.StreamInfo(name)
	if err == nil {
		for _, s := range info.Config.Subjects {
			if s == subject {
				return nil
			}
		}
		cfg := info.Config
		cfg.Subjects = append(cfg.Subjects, subject)
		_, err = m.UpdateStream(&cfg)
		return err
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = m.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	return err
}
