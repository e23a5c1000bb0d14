// Package cache stores short-lived values in process memory or in Redis
// behind one generic interface.
//
// The HTTP layer keeps idempotent responses here: a single instance uses
// [NewMemory], a fleet shares [NewRedis] so a retried request hitting
// another replica still replays the first answer.
//
//	responses := cache.NewRedis[Record](client, nil,
//		cache.WithPrefix("postbox:idempotency"),
//		cache.WithDefaultTTL(24*time.Hour),
//	)
//	stored, err := responses.Add(ctx, key, record, 0)
//
// Add is the set-if-absent primitive (SETNX in Redis); Get reports
// [ErrNotFound] for missing and expired keys.
package cache
