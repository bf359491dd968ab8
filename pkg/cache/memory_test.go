package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2023, 4, 27, 0, 0, 0, 0, time.UTC)}
}

func TestMemoryTTL(t *testing.T) {
	clock := newClock()
	m := NewMemory[string](WithMemoryTTL(600*time.Second), WithMemoryClock(clock.Now))

	m.Set("types", "index")
	clock.Advance(599 * time.Second)
	v, ok := m.Get("types")
	require.True(t, ok)
	assert.Equal(t, "index", v)

	clock.Advance(time.Second)
	_, ok = m.Get("types")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMemoryNoTTLNeverExpires(t *testing.T) {
	clock := newClock()
	m := NewMemory[int](WithMemoryClock(clock.Now))
	m.Set("a", 1)
	clock.Advance(24 * 365 * time.Hour)
	_, ok := m.Get("a")
	assert.True(t, ok)
}

func TestMemoryLRUEviction(t *testing.T) {
	m := NewMemory[int](WithMemoryMaxSize(2))
	var evicted []string
	m.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	m.Set("a", 1)
	m.Set("b", 2)
	_, _ = m.Get("a") // b is now least recently used
	m.Set("c", 3)

	_, ok := m.Get("b")
	assert.False(t, ok)
	_, ok = m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, m.Len())
}

func TestMemoryCapacityOne(t *testing.T) {
	m := NewMemory[string](WithMemoryMaxSize(1))
	m.Set("x", "1")
	m.Set("y", "2")
	_, ok := m.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryOverwriteDoesNotEvict(t *testing.T) {
	m := NewMemory[int](WithMemoryMaxSize(1))
	var evictions int
	m.OnEvict(func(string, int) { evictions++ })
	m.Set("a", 1)
	m.Set("a", 2)
	v, _ := m.Get("a")
	assert.Equal(t, 2, v)
	assert.Zero(t, evictions)
}

func TestMemoryClearAndDelete(t *testing.T) {
	m := NewMemory[int]()
	var cleared []string
	m.OnEvict(func(key string, _ int) { cleared = append(cleared, key) })
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	m.Delete("a", "missing")
	assert.Equal(t, 2, m.Len())

	m.Clear()
	assert.Zero(t, m.Len())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cleared)
}

func TestMemoryStoreCopiesBytes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in, 0))
	in[0] = 'z'

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	out[0] = 'y'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStoreMissAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, s.Clear(ctx))
	assert.Zero(t, s.Len())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, SetJSON(ctx, s, "types", []string{"equity", "index"}, 0))

	got, err := GetJSON[[]string](ctx, s, "types")
	require.NoError(t, err)
	assert.Equal(t, []string{"equity", "index"}, got)

	require.NoError(t, s.Set(ctx, "bad", []byte("{"), 0))
	_, err = GetJSON[[]string](ctx, s, "bad")
	assert.Error(t, err)
}

func TestLayeredReadsThroughAndPopulatesL1(t *testing.T) {
	ctx := context.Background()
	l1, l2 := NewMemoryStore(), NewMemoryStore()
	lc := NewLayered(l1, l2)

	require.NoError(t, l2.Set(ctx, "k", []byte("v"), 0))
	got, err := lc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	fromL1, err := l1.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(fromL1))
}

func TestLayeredWriteThroughAndClear(t *testing.T) {
	ctx := context.Background()
	l1, l2 := NewMemoryStore(), NewMemoryStore()
	lc := NewLayered(l1, l2, WithLayeredL1TTL(time.Second))

	require.NoError(t, lc.Set(ctx, "k", []byte("v"), time.Hour))
	assert.Equal(t, 1, l1.Len())
	assert.Equal(t, 1, l2.Len())

	require.NoError(t, lc.Clear(ctx))
	_, err := lc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "secapi:types", GenerateKey("secapi", "types"))
	assert.Len(t, HashKey("token"), 64)
	assert.NotEqual(t, HashKey("a"), HashKey("b"))
	assert.Equal(t, "indexsdk:*", BuildPattern("indexsdk:"))
}
