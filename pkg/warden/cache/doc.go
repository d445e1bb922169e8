// Package cache holds the two in-memory maps the enforcement path reads
// and writes without touching the network.
//
// ValueCache accumulates usage per (policy, user) until the push loop
// reports it. InfractionCache holds the latest infraction per
// (policy, user) as reported by the pull loop or pushed by the authority,
// and is what suspension checks consult.
//
// Both caches are safe for concurrent use. Each guards its own map with a
// sync.RWMutex and no operation holds both locks.
//
// # Eviction
//
// InfractionCache drops timed suspensions that have already ended. The
// sweep runs on every Put, on demand through Sweep, and optionally on an
// interval through StartJanitor. Entries without a suspension and
// indefinite suspensions are never evicted by time; they are replaced by
// later infractions for the same key.
package cache
