// Package delivery implements the asynchronous document delivery pipeline.
//
// A Gateway validates a Request, writes a queued Log and admits a job to the
// queue. The Dispatcher task renders the document, sends it through the
// provider chain and records the outcome:
//
//	queued -> sent -> bounced | spam_report
//	queued -> failed
//
// Retries belong to the queue. The dispatcher mirrors the queue's attempt
// counter into Log.RetryCount, so a delivery that fails three times ends
// failed with RetryCount 3, and one that succeeds on the third attempt ends
// sent with RetryCount 2.
//
// A Correlator matches provider webhook events to logs by provider message
// id, and a Query serves status and history reads.
//
// Storage is behind LogStore; see internal/pgstore and internal/memstore.
package delivery
