package cache

import (
	"context"
	"errors"
	"time"
)

// Layered is a two-level Store: a small local L1 in front of a shared L2 (Redis).
type Layered struct {
	l1    Store
	l2    Store
	l1TTL time.Duration
}

// NewLayered creates a layered store.
func NewLayered(l1, l2 Store, opts ...LayeredOption) *Layered {
	cfg := &LayeredConfig{
		L1TTL: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Layered{l1: l1, l2: l2, l1TTL: cfg.L1TTL}
}

func (lc *Layered) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := lc.l1.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err := lc.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = lc.l1.Set(ctx, key, v, lc.l1TTL)
	return v, nil
}

// Set writes through: L2 first, then L1.
func (lc *Layered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	l1TTL := lc.l1TTL
	if ttl > 0 && ttl < l1TTL {
		l1TTL = ttl
	}
	return lc.l1.Set(ctx, key, value, l1TTL)
}

func (lc *Layered) Delete(ctx context.Context, keys ...string) error {
	return errors.Join(lc.l1.Delete(ctx, keys...), lc.l2.Delete(ctx, keys...))
}

func (lc *Layered) Clear(ctx context.Context) error {
	return errors.Join(lc.l1.Clear(ctx), lc.l2.Clear(ctx))
}
