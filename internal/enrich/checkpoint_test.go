package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backfill.json")

	cp := NewCheckpoint()
	cp.MarkSucceeded("a")
	cp.MarkSkipped("b")
	cp.MarkFailed("c")
	require.NoError(t, cp.Save(path))

	loaded, err := LoadCheckpoint(path)
	require.NoError(t, err)

	assert.True(t, loaded.IsProcessed("a"))
	assert.True(t, loaded.IsProcessed("b"), "skipped ids join the processed set")
	assert.False(t, loaded.IsProcessed("c"), "failed ids must stay retryable")
	assert.Equal(t, []string{"c"}, loaded.FailedIDs)
	assert.Equal(t, 1, loaded.Succeeded)
	assert.Equal(t, 1, loaded.Skipped)
	assert.Equal(t, 1, loaded.Failed)
}

func TestLoadCheckpoint_MissingFileInitializes(t *testing.T) {
	cp, err := LoadCheckpoint(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.NotNil(t, cp.Processed)
	assert.Equal(t, 0, cp.Succeeded)
}

func TestLoadCheckpoint_CorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backfill.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadCheckpoint(path)
	require.Error(t, err)
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backfill.json")
	require.NoError(t, NewCheckpoint().Save(path))
	require.NoError(t, Clear(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing an absent checkpoint is fine.
	assert.NoError(t, Clear(path))
}

func TestCheckpoint_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backfill.json")
	require.NoError(t, NewCheckpoint().Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "backfill.json", entries[0].Name())
}
