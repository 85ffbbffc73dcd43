// Package repositories implements SQLite persistence for the authorization flow.
//
// Key Implementations:
//   - [AuthStateRepository] : single-use CSRF states bound to a session, with TTL-based pruning
//
// Sequence numbers provide stable, human-readable ordering (e.g., state #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
