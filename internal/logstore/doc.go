// Package logstore persists exported identity snapshots and derived
// mapping tables as files under an export directory.
//
// Per-kind logs are newline-delimited JSON, one self-describing record
// per line, so an import can resume from the files without re-running
// the export. Groups are the exception: each group is one whole-object
// JSON file under groups/, named by its display name.
//
// Reads are single-threaded sequential iteration; the only concurrent
// access is appending through Writer, which serializes whole lines
// behind a mutex.
package logstore
