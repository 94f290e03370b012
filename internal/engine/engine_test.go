package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OSS-Nextail/databricks-migrate/internal/checkpoint"
	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
)

// testEnv bundles the collaborators an engine test needs.
type testEnv struct {
	logs   *logstore.Store
	ledger *checkpoint.Ledger
	dir    string
}

// newTestEnv creates a logstore and checkpoint ledger in a temp dir.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	logs, err := logstore.Open(dir)
	require.NoError(t, err)
	ledger, err := checkpoint.Open(filepath.Join(dir, logstore.CheckpointDB))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return &testEnv{logs: logs, ledger: ledger, dir: dir}
}

// newEngine creates an engine over the env's logstore and ledger.
func (env *testEnv) newEngine(t *testing.T, source, dest directory.Client, cfg Config) *Engine {
	t.Helper()
	e := New(source, dest, env.logs, env.ledger, cfg)
	t.Cleanup(func() { e.Close() })
	return e
}
