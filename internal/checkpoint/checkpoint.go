package checkpoint

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Direction distinguishes export-side and import-side key-sets.
type Direction string

const (
	Export Direction = "export"
	Import Direction = "import"
)

// Set is one durable key-set. Contains answers "was this key already
// processed"; Write records a key after its create succeeded. Both are
// safe for concurrent use.
type Set interface {
	Contains(key string) (bool, error)
	Write(key string) error
}

// Service hands out key-sets per (direction, kind). The engine depends
// on this interface so tests can substitute an in-memory double and a
// run can opt out of checkpointing entirely.
type Service interface {
	KeySet(direction Direction, kind string) Set
}

// Ledger is the SQLite-backed checkpoint service.
// Uses WAL mode so the single writer never blocks readers.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger database at the given path.
// Idempotent - safe to call on an existing ledger.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect checkpoint db: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent create workers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply checkpoint schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// KeySet returns the durable key-set for a (direction, kind) pair.
func (l *Ledger) KeySet(direction Direction, kind string) Set {
	return &keySet{db: l.db, direction: direction, kind: kind}
}

type keySet struct {
	db        *sql.DB
	direction Direction
	kind      string
}

func (k *keySet) Contains(key string) (bool, error) {
	var count int
	err := k.db.QueryRow(`
		SELECT COUNT(*) FROM checkpoints
		WHERE direction = ? AND kind = ? AND key = ?
	`, string(k.direction), k.kind, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check checkpoint %s/%s %q: %w", k.direction, k.kind, key, err)
	}
	return count > 0, nil
}

func (k *keySet) Write(key string) error {
	_, err := k.db.Exec(`
		INSERT INTO checkpoints (direction, kind, key)
		VALUES (?, ?, ?)
		ON CONFLICT(direction, kind, key) DO NOTHING
	`, string(k.direction), k.kind, key)
	if err != nil {
		return fmt.Errorf("write checkpoint %s/%s %q: %w", k.direction, k.kind, key, err)
	}
	return nil
}

// Disabled returns a checkpoint service whose key-sets remember nothing:
// Contains is always false and Write is a no-op. Used when a run opts
// out of checkpointing.
func Disabled() Service {
	return disabledService{}
}

type disabledService struct{}

func (disabledService) KeySet(Direction, string) Set { return disabledSet{} }

type disabledSet struct{}

func (disabledSet) Contains(string) (bool, error) { return false, nil }
func (disabledSet) Write(string) error            { return nil }
