package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/atmx/option-vault/internal/model"
)

// MemoryStore implements Store with an in-memory slice. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	events []model.Event
	byID   map[string]int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]int),
	}
}

func (s *MemoryStore) InsertEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[e.ID]; ok {
		return fmt.Errorf("store: event %s already exists", e.ID)
	}
	s.byID[e.ID] = len(s.events)
	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := s.events[i]
	return &e, nil
}

func (s *MemoryStore) ListEvents(_ context.Context, f EventFilter) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Event, 0)
	for i := range s.events {
		if !f.matches(&s.events[i]) {
			continue
		}
		result = append(result, s.events[i])
		if len(result) == f.limit() {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) GetOptionHistory(ctx context.Context, emitter common.Address, optionID uint64) ([]model.Event, error) {
	return s.ListEvents(ctx, EventFilter{Emitter: &emitter, OptionID: &optionID, Limit: math.MaxInt32})
}
