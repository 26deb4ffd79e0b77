package memory

import (
	"context"
	"sync"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// GridStore is an in-memory implementation of storage.GridStore.
type GridStore struct {
	mu        sync.RWMutex
	ids       map[string]struct{}
	bySession map[string][]*domain.SimulatedGrid // creation order
}

// NewGridStore creates a new in-memory grid store.
func NewGridStore() *GridStore {
	return &GridStore{
		ids:       make(map[string]struct{}),
		bySession: make(map[string][]*domain.SimulatedGrid),
	}
}

// InsertBulk adds the grids of a session atomically. Fails entire batch on duplicate grid_id.
func (s *GridStore) InsertBulk(_ context.Context, sessionID string, grids []*domain.SimulatedGrid) error {
	if len(grids) == 0 {
		return nil
	}
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(grids))
	for _, g := range grids {
		if g == nil || g.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.ids[g.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[g.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[g.ID] = struct{}{}
	}

	for _, g := range grids {
		s.ids[g.ID] = struct{}{}
		s.bySession[sessionID] = append(s.bySession[sessionID], g.Clone())
	}
	return nil
}

// GetBySessionID retrieves the grids of a session in creation order.
func (s *GridStore) GetBySessionID(_ context.Context, sessionID string) ([]*domain.SimulatedGrid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedGrid
	for _, g := range s.bySession[sessionID] {
		result = append(result, g.Clone())
	}
	return result, nil
}

var _ storage.GridStore = (*GridStore)(nil)
