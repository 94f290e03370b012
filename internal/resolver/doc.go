// Package resolver converts source-environment identifiers into the
// destination identifiers needed at import time.
//
// Opaque ids never survive the environment boundary, so every kind
// resolves through a source-stable key: userName for users, displayName
// for groups and service principals. Destination state is listed fresh
// at the start of each import sub-phase - attach phases run after
// create phases and need the ids those creates produced, so nothing is
// cached across phases.
package resolver
