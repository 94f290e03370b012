package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
)

// ErrorEntry is one recoverable failure, written to the kind-scoped
// error log with enough context for manual remediation.
type ErrorEntry struct {
	Time    time.Time `json:"time"`
	Run     string    `json:"run"`
	Kind    string    `json:"kind"`
	Key     string    `json:"key"`
	Message string    `json:"message"`
}

// ErrorLog collects per-item failures without aborting the batch. One
// NDJSON file per kind, appended across runs so a resume never erases
// earlier findings. Safe for concurrent use by create workers.
type ErrorLog struct {
	logs *logstore.Store
	run  string

	mu      sync.Mutex
	writers map[string]*logstore.Writer
	counts  map[string]int
}

// NewErrorLog creates an error log for one run. The run token ties
// entries from the same invocation together.
func NewErrorLog(logs *logstore.Store, run string) *ErrorLog {
	return &ErrorLog{
		logs:    logs,
		run:     run,
		writers: make(map[string]*logstore.Writer),
		counts:  make(map[string]int),
	}
}

// errorLogName returns the file name of a kind's error log.
func errorLogName(kind string) string {
	return fmt.Sprintf("errors_%s.log", kind)
}

// Record writes one failure entry and mirrors it to the process log.
// A failing write is itself only logged: error reporting must never
// take down the batch it reports on.
func (e *ErrorLog) Record(kind, key, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Error(msg, "kind", kind, "key", key)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[kind]++

	w, ok := e.writers[kind]
	if !ok {
		var err error
		w, err = e.logs.AppendWriter(errorLogName(kind))
		if err != nil {
			slog.Error("open error log", "kind", kind, "error", err)
			return
		}
		e.writers[kind] = w
	}

	entry := ErrorEntry{
		Time:    time.Now().UTC(),
		Run:     e.run,
		Kind:    kind,
		Key:     key,
		Message: msg,
	}
	if err := w.Append(entry); err != nil {
		slog.Error("write error log", "kind", kind, "error", err)
	}
}

// Count returns how many failures this run recorded for a kind.
func (e *ErrorLog) Count(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[kind]
}

// Close closes all open error log files.
func (e *ErrorLog) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for kind, w := range e.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close error log %s: %w", kind, err)
		}
	}
	e.writers = make(map[string]*logstore.Writer)
	return firstErr
}
