package fetch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ymzhao/logleaks/internal/checkpoint"
	"github.com/ymzhao/logleaks/internal/dataset"
)

// stubClient serves canned payloads or errors per sha256 and counts calls.
type stubClient struct {
	payload []byte
	errs    map[string]error
	calls   map[string]int
}

func newStubClient(payload string) *stubClient {
	return &stubClient{
		payload: []byte(payload),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (c *stubClient) FetchArtifact(_ context.Context, sha256 string) (io.ReadCloser, int64, error) {
	c.calls[sha256]++

	if err := c.errs[sha256]; err != nil {
		return nil, 0, err
	}

	return io.NopCloser(bytes.NewReader(c.payload)), int64(len(c.payload)), nil
}

func testItem(identifier, sha string) dataset.WorkItem {
	return dataset.WorkItem{
		Identifier: identifier,
		SHA256:     sha,
		ScanDate:   time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC),
		Market:     "play.google.com",
	}
}

func noSleep(context.Context, time.Duration) {}

func newTestFetcher(t *testing.T, client Client, opts Options) (*Fetcher, string, *checkpoint.Store) {
	t.Helper()

	destDir := filepath.Join(t.TempDir(), "apks")
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "progress.json"))

	opts.Policy = ImmediateRetryPolicy(3)
	opts.Sleep = noSleep

	return NewFetcher(client, destDir, store, opts), destDir, store
}

func TestRunDownloadsAllItems(t *testing.T) {
	client := newStubClient("apk-bytes")
	fetcher, destDir, store := newTestFetcher(t, client, Options{})

	items := []dataset.WorkItem{
		testItem("com.example.one", "aaaaaaaaaaaaaaaa"),
		testItem("com.example.two", "bbbbbbbbbbbbbbbb"),
	}

	state, err := fetcher.Run(context.Background(), items, false)
	require.NoError(t, err)

	require.Equal(t, 2, state.Stats.Succeeded)
	require.Equal(t, 0, state.Stats.Failed)
	require.Equal(t, state.Stats.Total(), len(state.Processed))

	for _, item := range items {
		require.Equal(t, 1, client.calls[item.SHA256])

		data, err := os.ReadFile(filepath.Join(destDir, TargetFilename(item)))
		require.NoError(t, err)
		require.Equal(t, "apk-bytes", string(data))
	}

	// A completed run leaves no resume artifact.
	loaded, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, loaded.Processed)
}

func TestRunPermanentFailureIsNotRetried(t *testing.T) {
	client := newStubClient("apk-bytes")
	client.errs["missing0000000000"] = &PermanentError{Operation: "fetch_artifact", StatusCode: 404, Reason: "not found"}

	fetcher, destDir, _ := newTestFetcher(t, client, Options{})

	items := []dataset.WorkItem{
		testItem("com.example.gone", "missing0000000000"),
		testItem("com.example.ok", "cccccccccccccccc"),
	}

	state, err := fetcher.Run(context.Background(), items, false)
	require.NoError(t, err)

	require.Equal(t, 1, client.calls["missing0000000000"], "permanent failures must not be retried")
	require.Equal(t, 1, state.Stats.Failed)

	// The loop continues past the failed item.
	require.Equal(t, 1, state.Stats.Succeeded)
	require.Equal(t, 1, client.calls["cccccccccccccccc"])

	_, statErr := os.Stat(filepath.Join(destDir, TargetFilename(items[0])))
	require.True(t, os.IsNotExist(statErr), "failed item must not leave a file")
}

func TestRunRetryableFailureIsBounded(t *testing.T) {
	client := newStubClient("apk-bytes")
	client.errs["flaky00000000000"] = &RetryableError{Operation: "fetch_artifact", Reason: "connection reset"}

	fetcher, destDir, _ := newTestFetcher(t, client, Options{})

	items := []dataset.WorkItem{testItem("com.example.flaky", "flaky00000000000")}

	state, err := fetcher.Run(context.Background(), items, false)
	require.NoError(t, err)

	require.Equal(t, 3, client.calls["flaky00000000000"])
	require.Equal(t, 1, state.Stats.Failed)

	_, statErr := os.Stat(filepath.Join(destDir, TargetFilename(items[0])))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunSkipsExistingFileWithoutNetwork(t *testing.T) {
	client := newStubClient("apk-bytes")
	fetcher, destDir, _ := newTestFetcher(t, client, Options{})

	item := testItem("com.example.kept", "dddddddddddddddd")

	require.NoError(t, os.MkdirAll(destDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, TargetFilename(item)), []byte("already here"), 0o644))

	state, err := fetcher.Run(context.Background(), []dataset.WorkItem{item}, false)
	require.NoError(t, err)

	require.Equal(t, 0, client.calls[item.SHA256], "existing files must not be re-fetched")
	require.Equal(t, 1, state.Stats.SkippedExisting)

	data, err := os.ReadFile(filepath.Join(destDir, TargetFilename(item)))
	require.NoError(t, err)
	require.Equal(t, "already here", string(data))
}

func TestRunResumeSkipsProcessedItems(t *testing.T) {
	client := newStubClient("apk-bytes")
	fetcher, _, store := newTestFetcher(t, client, Options{})

	items := []dataset.WorkItem{
		testItem("com.example.done", "eeeeeeeeeeeeeeee"),
		testItem("com.example.todo", "ffffffffffffffff"),
	}

	previous := checkpoint.NewState()
	previous.Record(items[0].Identifier, checkpoint.BucketSucceeded)
	require.NoError(t, store.Flush(previous))

	state, err := fetcher.Run(context.Background(), items, true)
	require.NoError(t, err)

	require.Equal(t, 0, client.calls["eeeeeeeeeeeeeeee"], "resumed items must not be re-fetched")
	require.Equal(t, 1, client.calls["ffffffffffffffff"])
	require.Equal(t, previous.RunID, state.RunID)
	require.Equal(t, 2, state.Stats.Succeeded)
	require.Equal(t, state.Stats.Total(), len(state.Processed))
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	client := newStubClient("apk-bytes")
	fetcher, destDir, _ := newTestFetcher(t, client, Options{DryRun: true})

	items := []dataset.WorkItem{testItem("com.example.dry", "1111111111111111")}

	state, err := fetcher.Run(context.Background(), items, false)
	require.NoError(t, err)

	require.Equal(t, 0, client.calls["1111111111111111"])
	require.Equal(t, 1, state.Stats.Succeeded)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunMissingHashIsPermanentFailure(t *testing.T) {
	client := newStubClient("apk-bytes")
	fetcher, _, _ := newTestFetcher(t, client, Options{})

	items := []dataset.WorkItem{testItem("com.example.nohash", "")}

	state, err := fetcher.Run(context.Background(), items, false)
	require.NoError(t, err)

	require.Empty(t, client.calls)
	require.Equal(t, 1, state.Stats.Failed)
}

func TestRunInterruptedRunLeavesResumableCheckpoint(t *testing.T) {
	client := newStubClient("apk-bytes")

	destDir := filepath.Join(t.TempDir(), "apks")
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "progress.json"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := NewFetcher(client, destDir, store, Options{
		Policy:     ImmediateRetryPolicy(3),
		FlushEvery: 1,
		// Cancel after the first item's courtesy delay, as an interrupt would.
		Sleep: func(context.Context, time.Duration) { cancel() },
	})

	items := []dataset.WorkItem{
		testItem("com.example.one", "2222222222222222"),
		testItem("com.example.two", "3333333333333333"),
	}

	state, err := fetcher.Run(ctx, items, false)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, state.Stats.Succeeded)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.True(t, loaded.IsProcessed("com.example.one"))
	require.False(t, loaded.IsProcessed("com.example.two"))
	require.Equal(t, state.RunID, loaded.RunID)
}
