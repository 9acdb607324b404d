package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	updatedAt time.Time
}

// MemoryStore keeps sessions in process memory. It backs the "none"
// sessions backend and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]memoryEntry
	now      func() time.Time
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]map[string]memoryEntry),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, uid, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[uid][field]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryStore) Put(_ context.Context, uid string, fields map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[uid]
	if !ok {
		s = make(map[string]memoryEntry)
		m.sessions[uid] = s
	}
	now := m.now()
	for field, value := range fields {
		s[field] = memoryEntry{value: append([]byte(nil), value...), updatedAt: now}
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, uid string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[uid]
	for _, field := range fields {
		delete(s, field)
	}
	return nil
}

func (m *MemoryStore) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for uid, s := range m.sessions {
		var newest time.Time
		for _, e := range s {
			if e.updatedAt.After(newest) {
				newest = e.updatedAt
			}
		}
		if newest.Before(before) {
			n += int64(len(s))
			delete(m.sessions, uid)
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
