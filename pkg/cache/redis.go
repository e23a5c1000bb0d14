package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a cache shared between processes. Values are encoded with the
// given Marshaler, JSON when nil.
type Redis[V any] struct {
	client    redis.UniversalClient
	marshaler Marshaler[V]
	opts      *options
}

// NewRedis wraps a client obtained from pkg/redis.Connect. The client's
// lifecycle stays with the caller.
func NewRedis[V any](client redis.UniversalClient, m Marshaler[V], opts ...Option) *Redis[V] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if m == nil {
		m = jsonMarshaler[V]{}
	}
	return &Redis[V]{client: client, marshaler: m, opts: o}
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	data, err := r.client.Get(ctx, r.opts.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, err
	}
	return r.marshaler.Unmarshal(data)
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := r.marshaler.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.opts.key(key), data, r.expiration(ttl)).Err()
}

func (r *Redis[V]) Add(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	data, err := r.marshaler.Marshal(value)
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, r.opts.key(key), data, r.expiration(ttl)).Result()
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.opts.key(key)).Err()
}

func (r *Redis[V]) Close() error { return nil }

// expiration maps "never expires" to Redis' zero.
func (r *Redis[V]) expiration(ttl time.Duration) time.Duration {
	return max(r.opts.ttl(ttl), 0)
}

var _ Cache[any] = (*Redis[any])(nil)
