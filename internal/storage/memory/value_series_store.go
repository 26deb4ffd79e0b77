package memory

import (
	"context"
	"sort"
	"sync"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

// ValueSeriesStore is an in-memory implementation of storage.ValueSeriesStore.
type ValueSeriesStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.ValuePoint // session_id -> unix nanos -> point
}

// NewValueSeriesStore creates a new in-memory value series store.
func NewValueSeriesStore() *ValueSeriesStore {
	return &ValueSeriesStore{
		data: make(map[string]map[int64]domain.ValuePoint),
	}
}

// InsertBulk adds points. Fails entire batch on duplicate (session_id, timestamp).
func (s *ValueSeriesStore) InsertBulk(_ context.Context, sessionID string, points []domain.ValuePoint) error {
	if len(points) == 0 {
		return nil
	}
	if sessionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[sessionID]
	batchKeys := make(map[int64]struct{}, len(points))
	for _, p := range points {
		k := p.Timestamp.UnixNano()
		if _, exists := existing[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int64]domain.ValuePoint, len(points))
		s.data[sessionID] = existing
	}
	for _, p := range points {
		existing[p.Timestamp.UnixNano()] = p
	}
	return nil
}

// GetBySessionID retrieves the series of a session, ordered by timestamp ASC.
func (s *ValueSeriesStore) GetBySessionID(_ context.Context, sessionID string) ([]domain.ValuePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.ValuePoint
	for _, p := range s.data[sessionID] {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

var _ storage.ValueSeriesStore = (*ValueSeriesStore)(nil)
