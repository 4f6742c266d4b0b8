// Package cache keeps recently loaded analyses close to the service so that
// paging, sorting and exporting one analysis does not reload its rows from
// PostgreSQL on every request.
//
// Cached analyses are shared between callers and must be treated as read-only.
// Cache failures never surface to callers: they are logged and reported as a miss.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/labliq/internal/store"
)

// Cache stores analyses by ID.
type Cache interface {
	Get(ctx context.Context, id string) (*store.Analysis, bool)
	Set(ctx context.Context, a *store.Analysis)
	Delete(ctx context.Context, id string)
}

// Nop is a Cache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) (*store.Analysis, bool) { return nil, false }
func (Nop) Set(context.Context, *store.Analysis)                {}
func (Nop) Delete(context.Context, string)                      {}

// Memory is an in-process LRU cache with a per-entry TTL.
type Memory struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	ll         *list.List
	items      map[string]*list.Element
	now        func() time.Time
}

type entry struct {
	id      string
	value   *store.Analysis
	expires time.Time
}

// NewMemory returns an LRU cache holding at most maxEntries analyses.
// A ttl of zero keeps entries until they are evicted.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	return &Memory{
		maxEntries: max(maxEntries, 1),
		ttl:        ttl,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Get returns the cached analysis and marks it recently used.
func (m *Memory) Get(_ context.Context, id string) (*store.Analysis, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[id]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if m.expired(e) {
		m.removeElement(el)
		return nil, false
	}
	m.ll.MoveToFront(el)
	return e.value, true
}

// Set stores a, evicting the least recently used entry when full.
func (m *Memory) Set(_ context.Context, a *store.Analysis) {
	if a == nil || a.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}

	if el, ok := m.items[a.ID]; ok {
		e := el.Value.(*entry)
		e.value, e.expires = a, expires
		m.ll.MoveToFront(el)
		return
	}

	m.items[a.ID] = m.ll.PushFront(&entry{id: a.ID, value: a, expires: expires})
	for m.ll.Len() > m.maxEntries {
		m.removeElement(m.ll.Back())
	}
}

// Delete drops id from the cache.
func (m *Memory) Delete(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[id]; ok {
		m.removeElement(el)
	}
}

// Len returns the number of entries, including expired ones not yet evicted.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

func (m *Memory) expired(e *entry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

func (m *Memory) removeElement(el *list.Element) {
	m.ll.Remove(el)
	delete(m.items, el.Value.(*entry).id)
}
