package memory

import (
	"context"
	"sync"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// ExecutionStore is an in-memory implementation of storage.ExecutionStore.
type ExecutionStore struct {
	mu        sync.RWMutex
	ids       map[string]struct{}
	bySession map[string][]*domain.OrderExecution // log order
}

// NewExecutionStore creates a new in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		ids:       make(map[string]struct{}),
		bySession: make(map[string][]*domain.OrderExecution),
	}
}

// InsertBulk appends executions atomically. Fails entire batch on duplicate execution_id.
func (s *ExecutionStore) InsertBulk(_ context.Context, sessionID string, execs []*domain.OrderExecution) error {
	if len(execs) == 0 {
		return nil
	}
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(execs))
	for _, e := range execs {
		if e == nil || e.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.ids[e.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.ID] = struct{}{}
	}

	for _, e := range execs {
		cp := *e
		s.ids[e.ID] = struct{}{}
		s.bySession[sessionID] = append(s.bySession[sessionID], &cp)
	}
	return nil
}

// GetBySessionID retrieves a session's log in log order.
func (s *ExecutionStore) GetBySessionID(_ context.Context, sessionID string) ([]*domain.OrderExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderExecution
	for _, e := range s.bySession[sessionID] {
		cp := *e
		result = append(result, &cp)
	}
	return result, nil
}

// GetByGridID retrieves the executions of one grid in log order.
func (s *ExecutionStore) GetByGridID(_ context.Context, gridID string) ([]*domain.OrderExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderExecution
	for _, log := range s.bySession {
		for _, e := range log {
			if e.GridID == gridID {
				cp := *e
				result = append(result, &cp)
			}
		}
	}
	return result, nil
}

var _ storage.ExecutionStore = (*ExecutionStore)(nil)
