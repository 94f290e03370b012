package logstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Well-known file names under the export directory.
const (
	UsersLog             = "users.log"
	SingleUserLog        = "single_user.log"
	ServicePrincipalsLog = "service_principals.log"
	UserIDMapLog         = "user_name_to_user_id.log"
	SPMappingLog         = "service_principals_id_mapping.log"
	GroupsDir            = "groups"
	CheckpointDB         = "checkpoints.db"
)

// Store reads and writes migration artifacts under one export directory.
type Store struct {
	dir string
}

// Open creates the export directory if needed and returns a store on it.
// Idempotent - safe to call on an existing export.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the export directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path of a named artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether a named artifact has been written. A missing
// log is not an error condition: it means there is nothing to import
// for that kind.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Iterate reads a newline-delimited log from the start, invoking fn for
// each line. Each call re-reads the whole file, so iteration is
// restartable across import phases. Returning an error from fn stops
// the iteration.
func (s *Store) Iterate(name string, fn func(line []byte) error) error {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

// WriteJSON writes a single JSON object artifact, replacing any previous
// content. Used for the userName-to-id map.
func (s *Store) WriteJSON(name string, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(s.Path(name), encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadJSON reads a single JSON object artifact.
func (s *Store) ReadJSON(name string, v any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// GroupFileName returns the on-disk file name for a group display name,
// NFC-normalized so the same logical name round-trips regardless of the
// unicode form the API returned. Names that cannot serve as a file
// name are rejected.
func GroupFileName(displayName string) (string, error) {
	name := norm.NFC.String(displayName)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("group name %q cannot be used as a log file name", displayName)
	}
	return name, nil
}

// WriteGroup writes one group snapshot as a whole-object JSON file under
// groups/, creating the directory on first use.
func (s *Store) WriteGroup(displayName string, v any) error {
	name, err := GroupFileName(displayName)
	if err != nil {
		return err
	}
	dir := s.Path(GroupsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create groups dir: %w", err)
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode group %s: %w", displayName, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), encoded, 0o644); err != nil {
		return fmt.Errorf("write group %s: %w", displayName, err)
	}
	return nil
}

// ReadGroup reads one group snapshot by display name.
func (s *Store) ReadGroup(displayName string, v any) error {
	name, err := GroupFileName(displayName)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(s.Path(GroupsDir), name))
	if err != nil {
		return fmt.Errorf("read group %s: %w", displayName, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode group %s: %w", displayName, err)
	}
	return nil
}

// ListGroups returns the display names of all exported groups, or an
// empty slice when no group has been exported.
func (s *Store) ListGroups() ([]string, error) {
	entries, err := os.ReadDir(s.Path(GroupsDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
