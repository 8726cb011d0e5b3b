package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"vidstream/domain/ports"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is the in-process fallback for CachePort and LockerPort when Redis
// is not configured. Locks only cover this process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	locks   map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		locks:   make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *Memory) GetJSON(_ context.Context, key string, target any) error {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || (!e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)) {
		return ports.ErrCacheMiss
	}
	return json.Unmarshal(e.data, target)
}

func (m *Memory) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	e := entry{data: data}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) TryLock(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, held := m.locks[name]; held && now.Before(until) {
		return func() {}, false, nil
	}
	until := now.Add(ttl)
	m.locks[name] = until

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			// a newer holder may have taken an expired lease
			if m.locks[name].Equal(until) {
				delete(m.locks, name)
			}
			m.mu.Unlock()
		})
	}, true, nil
}

var (
	_ ports.CachePort  = (*Memory)(nil)
	_ ports.LockerPort = (*Memory)(nil)
)
