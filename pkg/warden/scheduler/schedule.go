package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Every fires first after initialDelay and then every interval.
func Every(initialDelay, interval time.Duration) cron.Schedule {
	return &delaySchedule{initialDelay: initialDelay, interval: interval}
}

// Cron parses a standard five-field cron expression.
func Cron(expr string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return s, nil
}

type delaySchedule struct {
	initialDelay time.Duration
	interval     time.Duration

	mu      sync.Mutex
	started bool
}

// Next implements cron.Schedule.
func (d *delaySchedule) Next(t time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		d.started = true
		return t.Add(d.initialDelay)
	}
	return t.Add(d.interval)
}
