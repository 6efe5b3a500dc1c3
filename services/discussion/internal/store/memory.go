package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

// InMemoryCommentStore is a development and test implementation. Writers are
// serialized by the mutex, so a transaction never observes a conflict.
type InMemoryCommentStore struct {
	mu       sync.RWMutex
	comments map[string]domain.Comment // id -> comment
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return &InMemoryCommentStore{comments: make(map[string]domain.Comment)}
}

func (s *InMemoryCommentStore) Create(_ context.Context, c domain.Comment) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c = c.Clone()
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	c.Version = 1
	s.comments[c.ID] = c
	return c.Clone(), nil
}

func (s *InMemoryCommentStore) Get(_ context.Context, id string) (domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return domain.Comment{}, notFound("store.Get", id)
	}
	return c.Clone(), nil
}

func (s *InMemoryCommentStore) Put(_ context.Context, c domain.Comment) error {
	if c.ID == "" {
		return domain.E(domain.ErrInvalidInput, "store.Put", "id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c = c.Clone()
	c.Version = s.comments[c.ID].Version + 1
	s.comments[c.ID] = c
	return nil
}

func (s *InMemoryCommentStore) Transact(_ context.Context, id string, fn MutateFunc) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.comments[id]
	if !ok {
		return domain.Comment{}, notFound("store.Transact", id)
	}
	work := cur.Clone()
	if err := fn(&work); err != nil {
		return domain.Comment{}, err
	}
	// id and post are immutable
	work.ID = cur.ID
	work.PostID = cur.PostID
	work.Version = cur.Version + 1
	s.comments[id] = work
	return work.Clone(), nil
}

func (s *InMemoryCommentStore) ListByPost(_ context.Context, postID string) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryCommentStore) Ping(context.Context) error { return nil }
