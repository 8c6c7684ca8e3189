package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMemorySize = 1024
	defaultMemoryTTL  = 30 * time.Minute
)

type memoryEntry struct {
	value    []byte
	deadline time.Time
}

// MemoryBackend is an in-process LRU. The LRU expires entries after the
// default ttl; shorter per-entry ttls are enforced on read.
type MemoryBackend struct {
	lru *expirable.LRU[string, memoryEntry]
	ttl time.Duration
	now func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates a memory backend holding at most size entries.
func NewMemoryBackend(size int, ttl time.Duration) *MemoryBackend {
	if size <= 0 {
		size = defaultMemorySize
	}
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	return &MemoryBackend{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

func (m *MemoryBackend) entry(key string) (memoryEntry, bool) {
	e, ok := m.lru.Get(key)
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.deadline) {
		m.lru.Remove(key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryBackend) Has(_ context.Context, key string) (bool, error) {
	_, ok := m.entry(key)
	return ok, nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.entry(key)
	if !ok {
		return nil, ErrMiss
	}
	return e.value, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > m.ttl {
		ttl = m.ttl
	}
	m.lru.Add(key, memoryEntry{value: value, deadline: m.now().Add(ttl)})
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.lru.Purge()
	return nil
}

func (m *MemoryBackend) Close() error {
	m.lru.Purge()
	return nil
}
