package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Cache is a key-value store with per-entry expiry.
//
// TTL semantics for Set and Add:
//   - positive: entry expires after the duration
//   - zero: the cache default TTL applies
//   - negative: entry never expires
type Cache[V any] interface {
	// Get returns ErrNotFound for missing or expired keys.
	Get(ctx context.Context, key string) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	// Add stores value only if key is absent and reports whether it did.
	Add(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Marshaler converts values to bytes for byte-oriented backends.
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

type options struct {
	prefix          string
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	maxEntries      int
}

func defaultOptions() *options {
	return &options{
		defaultTTL:      time.Hour,
		cleanupInterval: time.Minute,
	}
}

// Option configures a cache backend.
type Option func(*options)

// WithDefaultTTL sets the TTL used when Set receives zero.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl != 0 {
			o.defaultTTL = ttl
		}
	}
}

// WithPrefix namespaces keys, joined with ":".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithCleanupInterval sets how often the memory cache drops expired entries.
// Zero disables the background sweep. Redis ignores it.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.cleanupInterval = d
		}
	}
}

// WithMaxEntries bounds the memory cache; the least recently used entry is
// evicted first. Redis ignores it.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxEntries = n
		}
	}
}

func (o *options) key(k string) string {
	if o.prefix == "" {
		return k
	}
	return o.prefix + ":" + k
}

func (o *options) ttl(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return o.defaultTTL
	}
	return ttl
}
