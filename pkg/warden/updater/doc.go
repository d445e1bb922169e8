// Package updater contains the two synchronization loops between the local
// caches and the Warden authority.
//
// MetricUpdater pushes usage. Each run snapshots the ValueCache and sends
// one report per (policy, user) entry, stamped with the run time truncated
// to the minute. Values are cumulative and are never cleared after a
// push, so the authority sees the running total at each minute.
//
// InfractionUpdater pulls suspensions. Each run fetches the active
// suspensions of every tracked policy and stores them in the
// InfractionCache.
//
// A failure for one entry or one policy is logged and counted and the run
// moves on to the next; a run only returns an error summarizing how many
// items failed. Both types implement scheduler.Task.
package updater
