// Package reminder schedules payment reminders and fires them through the
// delivery gateway.
//
// The Scheduler is a periodic task (every five minutes by default). Each tick
// loads at most one batch of pending reminders that are due, enqueues a
// delivery for each, and marks it sent. A recurring reminder is never reused:
// after it is marked sent a new pending reminder is created for the next
// occurrence, one day, one week or one calendar month later.
//
//	scheduler := reminder.NewScheduler(store, gateway,
//		reminder.WithSchedule("*/5 * * * *"),
//		reminder.WithBatchSize(50),
//	)
//	manager, err := job.NewManager(pool, job.WithScheduledTask(scheduler))
//
// "sent" means handed off to the delivery pipeline. The outcome of the
// delivery itself is tracked by its delivery log.
package reminder
