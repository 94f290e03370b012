// Package engine orchestrates identity migration between two workspace
// environments: export from the source into append-only log files, and
// an idempotent, resumable import into the destination.
//
// Import runs in phases. Creates for users and service principals fan
// out across a bounded worker pool; everything else is sequential
// because later phases depend on the full completion of earlier ones
// (group membership needs every principal's destination id, grant
// attachment needs every object to exist).
//
// Failure handling is non-fatal-per-item: an API-level rejection of one
// object is written to the kind-scoped error log and the batch
// continues. Only precondition violations detected before any mutation
// (duplicate service-principal names under by-name mode, a cyclic group
// dependency graph) abort a batch, and they do so before the first
// create call.
package engine
