package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
)

// Store keeps analyses in process memory. Records are appended in id order
// and fully built before they become visible to readers.
type Store struct {
	mu      sync.RWMutex
	records []*domain.Analysis
	byID    map[domain.ID]*domain.Analysis
	nextID  domain.ID
}

func New() *Store {
	return &Store{byID: make(map[domain.ID]*domain.Analysis), nextID: 1}
}

func (s *Store) Insert(ctx context.Context, c domain.Candidate, createdAt time.Time, admit func(domain.ID) error) (domain.ID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	if admit != nil {
		if err := admit(id); err != nil {
			return 0, err
		}
	}
	rec := c.Build(id, createdAt)
	s.records = append(s.records, rec)
	s.byID[id] = rec
	s.nextID++
	return id, nil
}

func (s *Store) All(ctx context.Context) ([]*domain.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Analysis, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *Store) ByID(ctx context.Context, id domain.ID) (*domain.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

// Last returns the newest record or domain.ErrNotFound when empty.
func (s *Store) Last(ctx context.Context) (*domain.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, domain.ErrNotFound
	}
	return s.records[len(s.records)-1].Clone(), nil
}

// Len reports how many records are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
