// Package checkpoint provides the durable idempotency ledger a
// migration run consults before creating objects in the destination.
//
// The ledger is a SQLite database holding one append-only key-set per
// (direction, kind) pair. Presence of a key means "already migrated, do
// not recreate". Keys are human-readable identifiers (userName for
// users, displayName for groups and service principals) because opaque
// source ids are not stable inputs a re-run can reproduce.
//
// Writes are monotonic: keys are never deleted or overwritten, and a
// duplicate write is a silent no-op (ON CONFLICT DO NOTHING), which
// makes the ledger safe under concurrent create workers.
package checkpoint
