// Package store holds the in-memory record of issued tokens.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/perimetra/perimetra/internal/core"
)

var _ core.TokenStore = (*InMemoryTokenStore)(nil)

// InMemoryTokenStore keeps issued-token records for the process lifetime.
// Listing drops expired records; persistent session storage is out of
// scope.
type InMemoryTokenStore struct {
	mu      sync.RWMutex
	records []core.TokenRecord
	now     func() time.Time
}

// Option configures an InMemoryTokenStore.
type Option func(*InMemoryTokenStore)

// WithClock overrides the time source used to filter expired records.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryTokenStore) {
		s.now = now
	}
}

func NewInMemoryTokenStore(opts ...Option) *InMemoryTokenStore {
	s := &InMemoryTokenStore{
		records: make([]core.TokenRecord, 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryTokenStore) Save(_ context.Context, rec core.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryTokenStore) ListActive(_ context.Context) ([]core.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]core.TokenRecord, 0)
	now := s.now()

	for _, rec := range s.records {
		if rec.ExpiresAt.After(now) {
			active = append(active, rec)
		}
	}
	return active, nil
}
