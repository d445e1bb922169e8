// Package scheduler runs the client's periodic background work.
//
// A Supervisor owns a robfig/cron scheduler. Each registered task is
// built by a Factory and fired by its schedule: either Every, a fixed
// interval after an initial delay, or a standard five-field cron
// expression. Runs of the same task never overlap; a tick that arrives
// while the previous run is still going is skipped.
//
// A panic inside a task is recovered, logged and reported, and the task
// instance is discarded and rebuilt from its factory, so the schedule
// keeps firing with fresh state. Errors returned by a task are logged and
// do not affect later runs.
//
// Stop cancels the context passed to running tasks, stops the scheduler
// and waits for in-flight runs up to a timeout.
package scheduler
