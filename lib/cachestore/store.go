// Package cachestore defines the key-value collaborator the scrape
// engine consults before going out to the portal and updates after a
// successful scrape. The engine performs no locking of its own; any
// at-most-one-fetch-per-key coordination belongs to the store.
package cachestore

import (
	"context"
	"time"
)

type Store interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes the value under key; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Nop is used when no cache backend is configured: every read misses
// and writes go nowhere.
type Nop struct{}

func (Nop) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (Nop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
