package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one unit of periodic work.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

// Run implements Task.
func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Factory builds a fresh task instance.
type Factory func() Task

// Observer is notified about task runs.
type Observer interface {
	TaskCompleted(name string, duration time.Duration, err error)
	TaskPanicked(name string)
}

// Supervisor schedules tasks and replaces those that panic.
type Supervisor struct {
	cron     *cron.Cron
	logger   *slog.Logger
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    map[string]*supervisedJob
	running bool
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithObserver reports task outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Supervisor) {
		s.observer = o
	}
}

// New creates a stopped Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		logger: slog.Default().With("component", "scheduler"),
		jobs:   make(map[string]*supervisedJob),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
	return s
}

// Register adds a task under a unique name.
func (s *Supervisor) Register(name string, schedule cron.Schedule, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("task %s: nil factory", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("task %s already registered", name)
	}

	job := &supervisedJob{name: name, factory: factory, sup: s, current: factory()}
	job.id = s.cron.Schedule(schedule, job)
	s.jobs[name] = job

	s.logger.Debug("task registered", "task", name)
	return nil
}

// Start begins firing schedules. A stopped Supervisor cannot be restarted.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	if s.ctx.Err() != nil {
		s.logger.Warn("scheduler already stopped, not restarting")
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "tasks", len(s.jobs))
}

// Stop cancels running tasks and waits up to timeout for them to return.
// It returns false when tasks were still running at the deadline.
func (s *Supervisor) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if !s.running {
		return true
	}
	s.running = false

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("scheduler stopped")
		return true
	case <-time.After(timeout):
		s.logger.Warn("scheduler stop timed out, tasks still running", "timeout", timeout)
		return false
	}
}

// Running reports whether the scheduler is started.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next fire time of a task.
func (s *Supervisor) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := s.cron.Entry(job.id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}

// RunNow executes a task synchronously, outside its schedule, with the
// same panic handling as a scheduled run.
func (s *Supervisor) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s not registered", name)
	}
	return job.execute()
}

// ErrTaskPanicked is returned by RunNow when the task panicked.
var ErrTaskPanicked = errors.New("task panicked")

type supervisedJob struct {
	name    string
	factory Factory
	sup     *Supervisor
	id      cron.EntryID

	mu      sync.Mutex
	current Task
}

// Run implements cron.Job.
func (j *supervisedJob) Run() {
	_ = j.execute()
}

func (j *supervisedJob) execute() (err error) {
	j.mu.Lock()
	task := j.current
	j.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			j.sup.logger.Error("task panicked, replacing instance", "task", j.name, "panic", r)
			j.replace()
			if j.sup.observer != nil {
				j.sup.observer.TaskPanicked(j.name)
			}
			err = fmt.Errorf("%w: %s: %v", ErrTaskPanicked, j.name, r)
		}
	}()

	err = task.Run(j.sup.ctx)
	duration := time.Since(start)
	if err != nil {
		j.sup.logger.Warn("task run failed", "task", j.name, "duration", duration, "error", err)
	} else {
		j.sup.logger.Debug("task run completed", "task", j.name, "duration", duration)
	}
	if j.sup.observer != nil {
		j.sup.observer.TaskCompleted(j.name, duration, err)
	}
	return err
}

func (j *supervisedJob) replace() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.current = j.factory()
}

// cronLogger routes robfig/cron messages into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
