package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	require.NoError(t, err)
	return s
}

func setOf(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

func TestFileStore_MissingFileYieldsEmptySet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	processed, found, err := s.Load()
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, processed)
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	savedAt := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, s.Save(setOf("DSD_B", "DSD_A"), savedAt))

	processed, found, err := s.Load()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, setOf("DSD_A", "DSD_B"), processed)
}

func TestFileStore_Delete(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Delete(), "deleting an absent checkpoint is fine")

	require.NoError(t, s.Save(setOf("DSD_A"), time.Now()))
	require.NoError(t, s.Delete())

	_, found, err := s.Load()
	require.NoError(t, err)
	require.False(t, found)
}

func TestFileStore_RemoveTargets(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.Save(setOf("DSD_A", "DSD_B", "DSD_C"), now))

	require.NoError(t, s.RemoveTargets(setOf("DSD_B", "DSD_MISSING"), now))

	processed, found, err := s.Load()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, setOf("DSD_A", "DSD_C"), processed)
}

func TestFileStore_RemoveTargetsWithoutCheckpointIsNoOp(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.RemoveTargets(setOf("DSD_A"), time.Now()))

	_, found, err := s.Load()
	require.NoError(t, err)
	require.False(t, found, "RemoveTargets must not create a checkpoint")
}

func TestFileStore_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, _, err = s.Load()
	require.Error(t, err)
}
