package checkpoint

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	set := l.KeySet(Import, "users")
	ok, err := set.Contains("ana@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeySet_WriteThenContains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	set := l.KeySet(Import, "users")
	require.NoError(t, set.Write("ana@example.com"))

	ok, err := set.Contains("ana@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	// Duplicate writes are silent no-ops.
	require.NoError(t, set.Write("ana@example.com"))
}

func TestKeySet_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	l1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l1.KeySet(Import, "service_principals").Write("etl-runner"))
	require.NoError(t, l1.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	ok, err := l2.KeySet(Import, "service_principals").Contains("etl-runner")
	require.NoError(t, err)
	assert.True(t, ok, "checkpoint must survive a process restart")
}

func TestKeySet_IsolatedByDirectionAndKind(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.KeySet(Import, "users").Write("k"))

	ok, err := l.KeySet(Import, "groups").Contains("k")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.KeySet(Export, "users").Contains("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeySet_ConcurrentWriters(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	defer l.Close()

	set := l.KeySet(Import, "users")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// All workers write the same key; exactly one row results.
			assert.NoError(t, set.Write("shared@example.com"))
		}()
	}
	wg.Wait()

	ok, err := set.Contains("shared@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDisabled_RemembersNothing(t *testing.T) {
	set := Disabled().KeySet(Import, "users")
	require.NoError(t, set.Write("ana@example.com"))
	ok, err := set.Contains("ana@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}
