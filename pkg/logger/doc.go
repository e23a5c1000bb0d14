// Package logger builds the service's slog logger.
//
// Records are JSON on stdout by default. Context extractors attach values
// carried by the context to every record, so a worker that tags its context
// with a delivery log id gets it on each line without passing it around:
//
//	log, flush := logger.New(cfg, delivery.LogIDExtractor(), job.LogExtractor())
//	defer flush(2 * time.Second)
//
//	log.InfoContext(ctx, "delivery sent")
//	// {"level":"INFO","msg":"delivery sent","log_id":"...","job":{"id":42,"attempt":1}}
//
// With SENTRY_DSN set, warnings and errors are also forwarded to Sentry;
// errors open issues. Without it the logger writes to stdout only.
//
// Components accept an optional *slog.Logger and fall back to NewNope.
package logger
