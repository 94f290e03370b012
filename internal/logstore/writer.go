package logstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Writer appends JSON records to a log file, one per line. A single
// mutex serializes concurrent appends so whole lines never interleave,
// and every record is flushed to the OS before Append returns - a
// crashed run loses at most the record being written, never a partial
// line followed by a good one.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	name string
}

// NewWriter opens a log for writing, truncating previous content. Each
// export rebuilds the logs it owns from scratch.
func (s *Store) NewWriter(name string) (*Writer, error) {
	f, err := os.Create(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return &Writer{f: f, name: name}, nil
}

// AppendWriter opens a log for appending, creating it if needed. Used
// for logs that accumulate across resumed runs, like the mapping and
// error logs: a record written by an earlier run must survive a resume.
func (s *Store) AppendWriter(name string) (*Writer, error) {
	f, err := os.OpenFile(s.Path(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s for append: %w", name, err)
	}
	return &Writer{f: f, name: name}, nil
}

// Append marshals v and writes it as one line.
func (w *Writer) Append(v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record for %s: %w", w.name, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("append to %s: %w", w.name, err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
