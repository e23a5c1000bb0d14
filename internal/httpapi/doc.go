// Package httpapi exposes the delivery pipeline over HTTP with chi.
//
// Routes:
//
//	POST   /v1/deliveries           enqueue a document delivery (202)
//	GET    /v1/deliveries           delivery history with filters and paging
//	GET    /v1/deliveries/{id}      delivery log with attachments and events
//	POST   /v1/reminders            schedule a payment reminder (201)
//	GET    /v1/reminders/{id}       reminder state
//	DELETE /v1/reminders/{id}       cancel a pending reminder (204)
//	POST   /v1/webhooks/{provider}  provider tracking events (204)
//	GET    /health/live, /health/ready, /metrics
//
// Errors are rendered as {"error": {...}}: invalid requests are 400 with
// per-field messages, unknown ids are 404, anything else is 500.
//
// POST /v1/deliveries honours the Idempotency-Key header when an
// idempotency store is configured:
//
//	srv := httpapi.New(gateway, query, reminders, correlator,
//		httpapi.WithIdempotency(cache.NewRedis[httpapi.IdempotencyRecord](client, nil), 24*time.Hour),
//		httpapi.WithWebhook(sendgridWebhook),
//	)
//	err := httpapi.Run(ctx, srv.Handler(), httpapi.Address(":8080"))
package httpapi
