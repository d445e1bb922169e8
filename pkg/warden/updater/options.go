package updater

import (
	"log/slog"
	"time"
)

// Option configures an updater.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver reports per-item outcomes to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithClock sets the time source used for sample timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
