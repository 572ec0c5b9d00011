package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a zero ttl uses the backend default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear removes every entry owned by this cache
	Clear(ctx context.Context) error
	Close() error
}

// Config holds settings shared by all backends
type Config struct {
	DefaultTTL time.Duration
	// Prefix namespaces keys in shared backends
	Prefix string
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "gfmeta:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return fmt.Sprintf("cache miss: %s", e.Key)
}

// IsCacheMiss reports whether err is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}
