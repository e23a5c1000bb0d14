// Package health serves liveness and readiness checks.
//
//	r.Get("/health/live", health.LiveHandler())
//	r.Get("/health/ready", health.ReadyHandler([]health.Check{
//		health.Required("postgres", db.Healthcheck(pool)),
//		health.Required("queue", job.Healthcheck(manager)),
//		health.Optional("redis", redis.Healthcheck(client)),
//	}, health.WithLogger(log)))
//
// Checks run concurrently under one timeout (5s by default). Readiness is
// "degraded" with status 200 when only optional checks fail, and
// "unhealthy" with status 503 when a required one does.
package health
