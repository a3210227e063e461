package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const defaultMemoryCapacity = 512

type memEntry struct {
	raw     []byte
	expires time.Time
}

// MemoryStore is a bounded map with per-entry expiry. When full, the entry
// closest to expiry is evicted.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]memEntry
	capacity int
	now      func() time.Time
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryStore{
		entries:  make(map[string]memEntry),
		capacity: capacity,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && m.expired(e) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.raw, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	e := memEntry{raw: raw}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.capacity {
		m.evictLocked()
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) expired(e memEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

func (m *MemoryStore) evictLocked() {
	var victim string
	var victimExp time.Time
	first := true
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			return
		}
		// entries without expiry are evicted last
		exp := e.expires
		if exp.IsZero() {
			exp = time.Unix(1<<62, 0)
		}
		if first || exp.Before(victimExp) {
			victim, victimExp, first = k, exp, false
		}
	}
	if !first {
		delete(m.entries, victim)
	}
}
