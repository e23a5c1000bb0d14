// Package redis connects to Redis with go-redis. The client backs the
// idempotency cache of the delivery API.
//
//	client, err := redis.Connect(ctx, cfg, log)
//	if err != nil {
//		return err
//	}
//	defer redis.Shutdown(client)(ctx)
//
// Redis is optional: when Config.Enabled reports false the service keeps
// idempotency keys in memory.
package redis
