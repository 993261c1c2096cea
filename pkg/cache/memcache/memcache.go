// Package memcache is an in-process cache.Store backed by ristretto.
package memcache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Config sizes the cache. Cost is measured in bytes of value.
type Config struct {
	NumCounters int64
	MaxCost     int64
}

// DefaultConfig holds roughly 64 MiB of values.
func DefaultConfig() Config {
	return Config{
		NumCounters: 1e5,
		MaxCost:     64 << 20,
	}
}

// Store is a ristretto-backed cache.Store. Sets are applied asynchronously
// by ristretto; Set waits for the write so a following Get observes it.
type Store struct {
	cache *ristretto.Cache[string, []byte]
}

// New creates a Store.
func New(cfg Config) (*Store, error) {
	if cfg.NumCounters == 0 || cfg.MaxCost == 0 {
		cfg = DefaultConfig()
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}
	return &Store{cache: c}, nil
}

// Get returns the value for key if present and unexpired.
func (s *Store) Get(key string) ([]byte, bool) {
	return s.cache.Get(key)
}

// Set stores value under key for ttl. ristretto may reject a set under
// contention, which is not an error for a cache.
func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	s.cache.SetWithTTL(key, value, int64(len(value))+1, ttl)
	s.cache.Wait()
	return nil
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	s.cache.Del(key)
	return nil
}

// Close stops ristretto's background goroutines.
func (s *Store) Close() {
	s.cache.Close()
}
