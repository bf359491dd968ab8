package http

import (
	"fmt"
	"sync"

	"IndexSDK/pkg/cache"
)

// DefaultSessionCacheSize bounds how many distinct (token, config) sessions are kept.
const DefaultSessionCacheSize = 256

// SessionCache hands out one Session per (token, config) pair. Evicted and cleared
// sessions are closed. Callers own the cache; there is no package-level instance.
type SessionCache struct {
	mu   sync.Mutex
	mem  *cache.Memory[*Session]
	opts []SessionOption
}

// NewSessionCache creates a cache holding at most size sessions. opts are applied to
// every session it creates.
func NewSessionCache(size int, opts ...SessionOption) *SessionCache {
	if size < 1 {
		size = DefaultSessionCacheSize
	}
	mem := cache.NewMemory[*Session](cache.WithMemoryMaxSize(size))
	mem.OnEvict(func(_ string, s *Session) { _ = s.Close() })
	return &SessionCache{mem: mem, opts: opts}
}

// GetOrCreate returns the cached session for (token, cfg), creating it on first use.
func (c *SessionCache) GetOrCreate(token string, cfg SessionConfig) (*Session, error) {
	if err := ValidateStruct(&cfg); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	key := sessionKey(token, cfg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.mem.Get(key); ok {
		return s, nil
	}
	s, err := NewSession(token, cfg, c.opts...)
	if err != nil {
		return nil, err
	}
	c.mem.Set(key, s)
	return s, nil
}

// Clear closes and drops every cached session.
func (c *SessionCache) Clear() {
	c.mem.Clear()
}

// Len returns the number of cached sessions.
func (c *SessionCache) Len() int {
	return c.mem.Len()
}

func sessionKey(token string, cfg SessionConfig) string {
	return cache.HashKey(fmt.Sprintf("%s\x00%+v", token, cfg))
}
