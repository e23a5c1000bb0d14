// Package job provides background job processing using River (Postgres-native queue).
//
// It wraps River with a small, type-safe API used by the delivery pipeline:
// typed task registration, enqueue options, periodic tasks driven by cron
// expressions (descriptors such as "@hourly" included), an exponential retry policy and per-attempt metadata exposed
// to task handlers through the context.
//
// # Task Definition
//
// Tasks are structs with Name() and Handle() methods. No interface import is
// required; the package uses structural typing:
//
//	type DeliverDocument struct{ ... }
//
//	func (t *DeliverDocument) Name() string { return "deliver_document" }
//
//	func (t *DeliverDocument) Handle(ctx context.Context, p Payload) error {
//	    attempt := job.AttemptFromContext(ctx)
//	    ...
//	}
//
// # Periodic Tasks
//
// Periodic tasks implement Schedule() returning a five-field cron expression:
//
//	func (t *ProcessDueReminders) Schedule() string { return "*/5 * * * *" }
//	func (t *ProcessDueReminders) Handle(ctx context.Context) error { ... }
//
// River elects a single leader to insert periodic jobs, so a tick runs on one
// process at a time even when several workers are deployed.
//
// # Retries
//
// A failed attempt n is retried after baseDelay * 2^(n-1) until the job's
// MaxAttempts is reached:
//
//	manager, err := job.NewManager(pool,
//	    job.WithRetryPolicy(job.NewExponentialRetry(5*time.Second)),
//	    job.WithQueue("delivery", 10),
//	)
//
// A handler returns [Permanent] to stop retrying a job whose failure cannot be
// fixed by trying again (bad input, missing rows).
//
// # Error Handling
//
//   - [ErrUnknownTask] - Task name not registered
//   - [ErrInvalidPayload] - Payload deserialization failed
//   - [ErrAlreadyStarted] - Manager already running
//   - [ErrNotStarted] - Manager not running
//   - [ErrPoolRequired] - No database pool supplied
//   - [ErrHealthcheckFailed] - Health check failed
//
// River requires its tables; call [Migrate] before starting a Manager. A
// process that only admits jobs can use [NewEnqueuer] instead of a Manager.
package job
