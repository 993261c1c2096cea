// Package cache defines the TTL key/value store used to keep remote
// responses fresh for a while without refetching them.
package cache

import "time"

// Store is a TTL cache of raw bytes. A ttl of zero means the entry never
// expires.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}
