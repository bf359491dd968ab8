package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	key      string
	value    V
	expireAt time.Time // zero means no expiry
}

// Memory is a bounded in-process cache with LRU eviction and optional TTL.
// Expired entries are dropped lazily on access; no goroutine is started.
type Memory[V any] struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front is most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	onEvict func(key string, value V)
}

// NewMemory creates an in-memory cache.
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	cfg := &MemoryConfig{
		MaxSize: 1000,
		Clock:   time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize < 1 {
		cfg.MaxSize = 1
	}

	return &Memory[V]{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
		now:     cfg.Clock,
	}
}

// OnEvict registers fn to run, outside the lock, whenever an entry leaves the cache
// through eviction, expiry, Delete or Clear.
func (m *Memory[V]) OnEvict(fn func(key string, value V)) {
	m.mu.Lock()
	m.onEvict = fn
	m.mu.Unlock()
}

// Get returns the value for key and marks it most recently used.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	el, ok := m.items[key]
	if !ok {
		m.mu.Unlock()
		var zero V
		return zero, false
	}
	e := el.Value.(*memoryEntry[V])
	if m.expired(e) {
		m.removeElement(el)
		m.mu.Unlock()
		m.notify([]*memoryEntry[V]{e})
		var zero V
		return zero, false
	}
	m.order.MoveToFront(el)
	m.mu.Unlock()
	return e.value, true
}

// Set stores value with the cache's default TTL.
func (m *Memory[V]) Set(key string, value V) {
	m.SetWithTTL(key, value, m.ttl)
}

// SetWithTTL stores value; ttl <= 0 means it never expires.
func (m *Memory[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	var evicted []*memoryEntry[V]
	if el, ok := m.items[key]; ok {
		e := el.Value.(*memoryEntry[V])
		e.value = value
		e.expireAt = expireAt
		m.order.MoveToFront(el)
	} else {
		for m.order.Len() >= m.maxSize {
			evicted = append(evicted, m.evictLRU())
		}
		m.items[key] = m.order.PushFront(&memoryEntry[V]{key: key, value: value, expireAt: expireAt})
	}
	m.mu.Unlock()
	m.notify(evicted)
}

// Delete removes keys.
func (m *Memory[V]) Delete(keys ...string) {
	m.mu.Lock()
	var removed []*memoryEntry[V]
	for _, key := range keys {
		if el, ok := m.items[key]; ok {
			removed = append(removed, el.Value.(*memoryEntry[V]))
			m.removeElement(el)
		}
	}
	m.mu.Unlock()
	m.notify(removed)
}

// Clear empties the cache.
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	removed := make([]*memoryEntry[V], 0, m.order.Len())
	for el := m.order.Front(); el != nil; el = el.Next() {
		removed = append(removed, el.Value.(*memoryEntry[V]))
	}
	m.items = make(map[string]*list.Element)
	m.order.Init()
	m.mu.Unlock()
	m.notify(removed)
}

// Len returns the number of stored entries, expired or not.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory[V]) expired(e *memoryEntry[V]) bool {
	return !e.expireAt.IsZero() && !m.now().Before(e.expireAt)
}

func (m *Memory[V]) evictLRU() *memoryEntry[V] {
	el := m.order.Back()
	m.removeElement(el)
	return el.Value.(*memoryEntry[V])
}

func (m *Memory[V]) removeElement(el *list.Element) {
	e := el.Value.(*memoryEntry[V])
	delete(m.items, e.key)
	m.order.Remove(el)
}

func (m *Memory[V]) notify(entries []*memoryEntry[V]) {
	if len(entries) == 0 {
		return
	}
	m.mu.Lock()
	fn := m.onEvict
	m.mu.Unlock()
	if fn == nil {
		return
	}
	for _, e := range entries {
		fn(e.key, e.value)
	}
}

// MemoryStore adapts Memory to the Store interface.
type MemoryStore struct {
	mem *Memory[[]byte]
}

// NewMemoryStore creates a Store kept in process memory.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	return &MemoryStore{mem: NewMemory[[]byte](opts...)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.mem.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mem.SetWithTTL(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mem.Delete(keys...)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mem.Clear()
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	return s.mem.Len()
}
