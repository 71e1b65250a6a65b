package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordKeepsTallyEqualToProcessedSet(t *testing.T) {
	st := NewState()

	st.Record("com.example.a", BucketSucceeded)
	st.Record("com.example.b", BucketFailed)
	st.Record("com.example.c", BucketSkippedExisting)

	// Recording an identifier twice must not double-count.
	st.Record("com.example.a", BucketFailed)

	require.Equal(t, 1, st.Stats.Succeeded)
	require.Equal(t, 1, st.Stats.Failed)
	require.Equal(t, 1, st.Stats.SkippedExisting)
	require.Equal(t, st.Stats.Total(), len(st.Processed))
}

func TestSuccessRate(t *testing.T) {
	st := NewState()
	require.Zero(t, st.Stats.SuccessRate())

	st.Record("a", BucketSucceeded)
	st.Record("b", BucketSkippedExisting)
	st.Record("c", BucketFailed)
	st.Record("d", BucketFailed)

	require.InDelta(t, 50.0, st.Stats.SuccessRate(), 0.01)
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "progress.json"))

	st := NewState()
	st.Record("com.example.a", BucketSucceeded)
	st.Record("com.example.b", BucketFailed)

	require.NoError(t, store.Flush(st))

	loaded, err := store.Load()
	require.NoError(t, err)

	require.Equal(t, st.RunID, loaded.RunID)
	require.Equal(t, st.Stats, loaded.Stats)
	require.True(t, loaded.IsProcessed("com.example.a"))
	require.True(t, loaded.IsProcessed("com.example.b"))
	require.False(t, loaded.IsProcessed("com.example.c"))
	require.False(t, loaded.SavedAt.IsZero())
}

func TestStoreInterruptedFlushKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "progress.json"))

	st := NewState()
	st.Record("com.example.a", BucketSucceeded)
	require.NoError(t, store.Flush(st))

	// A crash between the temp-file write and the rename leaves a partial
	// temp file next to the snapshot. Load must still see the old state.
	partial := []byte(`{"run_id":"interrupted","processed_identifi`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "progress.json.tmp42"), partial, 0o644))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, st.RunID, loaded.RunID)
	require.True(t, loaded.IsProcessed("com.example.a"))
	require.Equal(t, st.Stats, loaded.Stats)
}

func TestStoreFlushFailureLeavesSnapshotReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")

	st := NewState()
	st.Record("com.example.a", BucketSucceeded)
	require.NoError(t, NewStore(path).Flush(st))

	// A store whose snapshot path has a file in the middle cannot even
	// create its temp file; the flush fails without touching anything.
	blocked := NewStore(filepath.Join(path, "nested.json"))

	st2 := NewState()
	st2.Record("com.example.b", BucketFailed)
	require.Error(t, blocked.Flush(st2))

	loaded, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Equal(t, st.RunID, loaded.RunID)
	require.True(t, loaded.IsProcessed("com.example.a"))
	require.False(t, loaded.IsProcessed("com.example.b"))
}

func TestStoreLoadMissingFileIsFreshState(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist.json"))

	st, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, st.Processed)
	require.NotEmpty(t, st.RunID)
}

func TestStoreRemove(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "progress.json"))

	require.NoError(t, store.Flush(NewState()))
	require.NoError(t, store.Remove())

	// Removing twice is fine.
	require.NoError(t, store.Remove())
}
