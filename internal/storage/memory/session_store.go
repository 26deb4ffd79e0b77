package memory

import (
	"context"
	"sort"
	"sync"

	"grid-trading-lab/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]*storage.SessionRecord // keyed by session_id
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]*storage.SessionRecord),
	}
}

// Insert adds a session. Returns ErrDuplicateKey if session_id exists.
func (s *SessionStore) Insert(_ context.Context, r *storage.SessionRecord) error {
	if r == nil || r.SessionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.SessionID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.SessionID] = r.Clone()
	return nil
}

// GetByID retrieves a session by id. Returns ErrNotFound if not exists.
func (s *SessionStore) GetByID(_ context.Context, sessionID string) (*storage.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[sessionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// List retrieves all sessions, ordered by started_at ASC, session_id ASC.
func (s *SessionStore) List(_ context.Context) ([]*storage.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.SessionRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, r.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.Before(result[j].StartedAt)
		}
		return result[i].SessionID < result[j].SessionID
	})
	return result, nil
}

var _ storage.SessionStore = (*SessionStore)(nil)
