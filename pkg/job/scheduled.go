package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

type scheduleConfig struct {
	handler  func(ctx context.Context) error
	name     string
	schedule string
}

// scheduledExecutor adapts a periodic handler; periodic jobs carry no payload.
func scheduledExecutor(handle func(ctx context.Context) error) executor {
	return func(ctx context.Context, _ json.RawMessage) error {
		return handle(ctx)
	}
}

type cronSchedule struct {
	schedule cron.Schedule
}

func (s cronSchedule) Next(current time.Time) time.Time {
	return s.schedule.Next(current)
}

// parseCronSchedule accepts standard 5-field expressions and descriptors
// such as "@hourly" or "@every 5m".
func parseCronSchedule(expr string) (river.PeriodicSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return cronSchedule{schedule: schedule}, nil
}
