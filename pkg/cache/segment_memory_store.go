package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a process-local store with lazy expiry and a size bound.
// When full, the entry closest to expiry is evicted.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]memoryEntry
	maxItems int
	now      func() time.Time

	hits   int64
	misses int64
}

func NewMemoryStore(maxItems int) *MemoryStore {
	if maxItems <= 0 {
		maxItems = 10000
	}
	return &MemoryStore{
		data:     make(map[string]memoryEntry),
		maxItems: maxItems,
		now:      time.Now,
	}
}

// WithClock replaces the time source; used to force expiry in tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[key]
	if !ok {
		m.misses++
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.data, key)
		m.misses++
		return "", false, nil
	}
	m.hits++
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists && len(m.data) >= m.maxItems {
		m.evictLocked()
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// evictLocked drops expired entries, or the soonest-expiring one if none are.
func (m *MemoryStore) evictLocked() {
	now := m.now()
	var victim string
	var victimAt time.Time
	for k, e := range m.data {
		if e.expiresAt.IsZero() {
			continue
		}
		if !now.Before(e.expiresAt) {
			delete(m.data, k)
			continue
		}
		if victim == "" || e.expiresAt.Before(victimAt) {
			victim, victimAt = k, e.expiresAt
		}
	}
	if len(m.data) < m.maxItems {
		return
	}
	if victim == "" {
		for k := range m.data {
			victim = k
			break
		}
	}
	delete(m.data, victim)
}

// Stats returns hit and miss counters and the current size.
func (m *MemoryStore) Stats() (hits, misses int64, size int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses, len(m.data)
}
