package job

import (
	"regexp"
	"time"
)

type enqueueConfig struct {
	scheduledAt time.Time
	queue       string
	tags        []string
	maxAttempts int
}

// EnqueueOption configures a single enqueue call.
type EnqueueOption func(*enqueueConfig)

// InQueue routes the job to a named queue instead of the default one.
//
//	q.Enqueue(ctx, "deliver_document", payload, job.InQueue("delivery"))
func InQueue(name string) EnqueueOption {
	return func(c *enqueueConfig) {
		if name != "" {
			c.queue = name
		}
	}
}

// ScheduledAt delays the first attempt until t. Zero means now.
func ScheduledAt(t time.Time) EnqueueOption {
	return func(c *enqueueConfig) {
		c.scheduledAt = t
	}
}

// MaxAttempts sets the total number of attempts, the first one included.
// Unset, River's default of 25 applies.
func MaxAttempts(n int) EnqueueOption {
	return func(c *enqueueConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

var tagPattern = regexp.MustCompile(`^[\w][\w\-]+[\w]$`)

// Tags labels the job for queue inspection. Values River would reject are
// dropped.
//
//	job.Tags("invoice")
func Tags(tags ...string) EnqueueOption {
	return func(c *enqueueConfig) {
		for _, t := range tags {
			if len(t) <= 255 && tagPattern.MatchString(t) {
				c.tags = append(c.tags, t)
			}
		}
	}
}
