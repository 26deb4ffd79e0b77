package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// PriceTickStore is an in-memory implementation of storage.PriceTickStore.
type PriceTickStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.PriceTick // session_id -> tick_index -> tick
}

// NewPriceTickStore creates a new in-memory price tick store.
func NewPriceTickStore() *PriceTickStore {
	return &PriceTickStore{
		data: make(map[string]map[int64]domain.PriceTick),
	}
}

// InsertBulk adds ticks. Fails entire batch on duplicate (session_id, tick_index).
func (s *PriceTickStore) InsertBulk(_ context.Context, sessionID string, ticks []domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[sessionID]
	batchKeys := make(map[int64]struct{}, len(ticks))
	for _, t := range ticks {
		if _, exists := existing[t.Index]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.Index]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.Index] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int64]domain.PriceTick, len(ticks))
		s.data[sessionID] = existing
	}
	for _, t := range ticks {
		existing[t.Index] = t
	}
	return nil
}

// GetBySessionID retrieves all ticks of a session, ordered by tick_index ASC.
func (s *PriceTickStore) GetBySessionID(_ context.Context, sessionID string) ([]domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(sessionID, func(domain.PriceTick) bool { return true }), nil
}

// GetByTimeRange retrieves ticks with timestamp within [start, end] (inclusive).
func (s *PriceTickStore) GetByTimeRange(_ context.Context, sessionID string, start, end time.Time) ([]domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(sessionID, func(t domain.PriceTick) bool {
		return !t.Timestamp.Before(start) && !t.Timestamp.After(end)
	}), nil
}

func (s *PriceTickStore) filter(sessionID string, keep func(domain.PriceTick) bool) []domain.PriceTick {
	var result []domain.PriceTick
	for _, t := range s.data[sessionID] {
		if keep(t) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result
}

var _ storage.PriceTickStore = (*PriceTickStore)(nil)
