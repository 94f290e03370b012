package engine

import (
	"github.com/google/uuid"

	"github.com/OSS-Nextail/databricks-migrate/internal/checkpoint"
	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
)

// Checkpoint kinds. These name the key-sets in the ledger and the
// kind-scoped error logs.
const (
	usersKind             = "users"
	servicePrincipalsKind = "service_principals"
	groupsKind            = "groups"
)

// Config carries the run-scoped settings the engine honors.
type Config struct {
	// GroupsToKeep restricts export scope to the named groups and, for
	// users, to members of those groups. Empty means everything.
	GroupsToKeep []string

	// Parallelism bounds the worker pool of the create phases.
	Parallelism int

	// MapSPByName enables reuse of same-named service principals
	// already present at the destination instead of creating new ones.
	MapSPByName bool

	// ApplyRoles gates the role-diff-and-patch phase. Only one of the
	// destination platform's two IAM models supports per-object role
	// assignment; entitlement attach runs regardless.
	ApplyRoles bool
}

// Engine drives export and import for all identity kinds.
type Engine struct {
	source      directory.Client
	dest        directory.Client
	logs        *logstore.Store
	checkpoints checkpoint.Service
	errs        *ErrorLog
	cfg         Config
	run         string
}

// New creates an engine. source may be nil for an import-only run and
// dest may be nil for an export-only run.
func New(source, dest directory.Client, logs *logstore.Store, checkpoints checkpoint.Service, cfg Config) *Engine {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	run := uuid.Must(uuid.NewV7()).String()
	return &Engine{
		source:      source,
		dest:        dest,
		logs:        logs,
		checkpoints: checkpoints,
		errs:        NewErrorLog(logs, run),
		cfg:         cfg,
		run:         run,
	}
}

// Errors exposes the run's error log, mainly for the CLI summary and
// for tests.
func (e *Engine) Errors() *ErrorLog {
	return e.errs
}

// Close releases the engine's open log files.
func (e *Engine) Close() error {
	return e.errs.Close()
}
