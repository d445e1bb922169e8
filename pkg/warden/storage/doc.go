// Package storage persists the client caches across restarts.
//
// Without persistence a restarted client forgets the usage it accumulated
// and enforces nothing until its first pull. A Backend stores a snapshot
// of both caches so they can be restored before registration.
//
// Two backends are provided:
//
//   - MemoryBackend keeps snapshots in process, mostly for tests and for
//     deployments that opt out of persistence
//   - SQLiteBackend writes to a SQLite database in WAL mode using the
//     pure-Go modernc.org/sqlite driver
//
// Checkpoint adapts a backend into a periodic task that saves both caches.
package storage
