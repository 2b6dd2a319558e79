package storage

import (
	"context"
	"sync"

	"github.com/Relayn/warehouse-bot/internal/core/domain"
)

// MemorySessionStore keeps sessions in a map. No eviction.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.Session)}
}

func (m *MemorySessionStore) Get(ctx context.Context, userID string) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return domain.NewIdleSession(), nil
	}
	return sess, nil
}

func (m *MemorySessionStore) Set(ctx context.Context, userID string, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = session
	return nil
}

func (m *MemorySessionStore) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
