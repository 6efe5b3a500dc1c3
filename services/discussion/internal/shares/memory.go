package shares

import (
	"context"
	"sync"
	"time"

	"github.com/example/discussion-platform/internal/platform/observability"
)

// InMemoryCounter is the development backend.
type InMemoryCounter struct {
	mu    sync.Mutex
	stats map[string]Stats
	now   func() time.Time
}

func NewInMemoryCounter(now func() time.Time) *InMemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &InMemoryCounter{stats: map[string]Stats{}, now: now}
}

func (m *InMemoryCounter) IncrementShare(_ context.Context, contentID, platform string) (Stats, error) {
	c, err := normalize("shares.IncrementShare", contentID, platform)
	if err != nil {
		return Stats{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats[c.ContentID].clone()
	s.ContentID = c.ContentID
	apply(&s, c.Platform, m.now().UTC())
	m.stats[c.ContentID] = s
	observability.ShareIncrements.WithLabelValues(c.Platform).Inc()
	return s.clone(), nil
}

func (m *InMemoryCounter) Get(_ context.Context, contentID string) (Stats, error) {
	c, err := normalize("shares.Get", contentID, "other")
	if err != nil {
		return Stats{}, err
	}
	m.mu.Lock()
	s, ok := m.stats[c.ContentID]
	m.mu.Unlock()
	if !ok {
		return Stats{ContentID: c.ContentID, ByPlatform: map[string]int64{}}, nil
	}
	return project(s.clone(), m.now().UTC()), nil
}
