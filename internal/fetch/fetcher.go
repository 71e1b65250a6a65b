// Package fetch drives an ordered batch of work items through a remote
// fetch with bounded retries, skip-if-already-done semantics, rate limiting,
// and crash-resumable progress.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/ymzhao/logleaks/internal/checkpoint"
	"github.com/ymzhao/logleaks/internal/dataset"
	"github.com/ymzhao/logleaks/internal/fetch/progress"
	"github.com/ymzhao/logleaks/internal/logctx"
	"github.com/ymzhao/logleaks/internal/storage"
	"github.com/ymzhao/logleaks/internal/telemetry"
)

const (
	dirPerm = 0o755

	// progressInterval is how many bytes pass between progress log lines.
	progressInterval = 10 * 1024 * 1024
)

// Client fetches one artifact by content hash. The returned reader streams
// the payload; the second value is the declared size (-1 when unknown).
type Client interface {
	FetchArtifact(ctx context.Context, sha256 string) (io.ReadCloser, int64, error)
}

// Options tune a Fetcher. Zero values fall back to sensible defaults.
type Options struct {
	Policy     RetryPolicy
	Delay      time.Duration // courtesy delay between items that hit the network
	FlushEvery int           // checkpoint flush cadence in processed items
	DryRun     bool
	Ledger     storage.FetchWriteRepository
	Metrics    *telemetry.Telemetry
	Sleep      SleepFunc
}

type Fetcher struct {
	client  Client
	destDir string
	store   *checkpoint.Store
	opts    Options
}

func NewFetcher(client Client, destDir string, store *checkpoint.Store, opts Options) *Fetcher {
	if opts.Policy.NewBackOff == nil {
		opts.Policy = DefaultRetryPolicy()
	}

	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 10
	}

	if opts.Sleep == nil {
		opts.Sleep = SleepWithContext
	}

	return &Fetcher{
		client:  client,
		destDir: destDir,
		store:   store,
		opts:    opts,
	}
}

// Run processes the items strictly in order, one at a time. Per-item errors
// never propagate out of the loop; they become recorded outcomes. The
// returned state is the final ProgressState, also flushed to the store.
func (f *Fetcher) Run(ctx context.Context, items []dataset.WorkItem, resume bool) (*checkpoint.ProgressState, error) {
	logger := logctx.LoggerFromContext(ctx)

	if err := os.MkdirAll(f.destDir, dirPerm); err != nil {
		return nil, &SetupError{Resource: f.destDir, Reason: "cannot create destination directory", Err: err}
	}

	state := checkpoint.NewState()

	if resume {
		loaded, err := f.store.Load()
		if err != nil {
			return nil, &SetupError{Resource: "checkpoint", Reason: "cannot load previous progress", Err: err}
		}

		state = loaded
		logger.Info("resuming previous run", "run_id", state.RunID, "already_processed", len(state.Processed))
	}

	sinceFlush := 0

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}

		if state.IsProcessed(item.Identifier) {
			logger.Debug("skipping already-processed item", "identifier", item.Identifier)

			continue
		}

		itemLogger := logger.With("identifier", item.Identifier)
		itemLogger.Info("processing work item", "position", fmt.Sprintf("%d/%d", i+1, len(items)))

		started := time.Now()
		outcome, usedNetwork := f.handleItem(logctx.WithLogger(ctx, itemLogger), item)

		f.record(ctx, state, item, outcome, time.Since(started))
		sinceFlush++

		if sinceFlush >= f.opts.FlushEvery {
			f.flush(state, itemLogger)
			sinceFlush = 0
		}

		if usedNetwork {
			f.opts.Sleep(ctx, f.opts.Delay)
		}
	}

	f.flush(state, logger)

	if allProcessed(state, items) {
		if err := f.store.Remove(); err != nil {
			logger.Warn("could not remove completed checkpoint", "err", err)
		} else {
			logger.Info("run complete, removed checkpoint")
		}
	}

	return state, ctx.Err()
}

// handleItem resolves one work item to a terminal outcome. The second return
// reports whether the remote endpoint was contacted, which decides whether
// the courtesy delay applies.
func (f *Fetcher) handleItem(ctx context.Context, item dataset.WorkItem) (Outcome, bool) {
	logger := logctx.LoggerFromContext(ctx)

	if item.SHA256 == "" {
		logger.Warn("row has no sha256 value, cannot fetch")

		return FailedPermanent("missing sha256 value"), false
	}

	targetPath := filepath.Join(f.destDir, TargetFilename(item))

	if info, err := os.Stat(targetPath); err == nil {
		logger.Info("skipped, file already exists", "size", humanize.Bytes(uint64(info.Size())))

		return SkippedExisting(info.Size()), false
	}

	if f.opts.DryRun {
		logger.Info("dry run, would fetch artifact", "target", targetPath)

		return Downloaded(0), false
	}

	written, err := f.fetchWithRetry(ctx, item.SHA256, targetPath)
	if err != nil {
		// A failed item never leaves a file at the target path.
		f.removeTarget(targetPath, logger)

		var permErr *PermanentError

		var ioErr *LocalIOError

		switch {
		case errors.As(err, &permErr):
			logger.Error("fetch failed permanently", "err", err)

			return FailedPermanent(err.Error()), true
		case errors.As(err, &ioErr):
			logger.Error("local write failed", "err", err)

			return FailedPermanent(err.Error()), true
		default:
			logger.Error("fetch failed after retries", "err", err)

			return FailedRetryable(err.Error()), true
		}
	}

	logger.Info("downloaded artifact", "target", targetPath, "size", humanize.Bytes(uint64(written)))

	return Downloaded(written), true
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, sha256, targetPath string) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	attempt := 0

	op := func() (int64, error) {
		attempt++
		logger.Info("fetching artifact", "attempt", attempt)

		written, err := f.downloadTo(ctx, sha256, targetPath)
		if err != nil {
			var permErr *PermanentError

			var ioErr *LocalIOError

			if errors.As(err, &permErr) || errors.As(err, &ioErr) {
				return 0, backoff.Permanent(err)
			}

			return 0, err
		}

		return written, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(f.opts.Policy.NewBackOff()),
		backoff.WithMaxTries(f.opts.Policy.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("fetch attempt failed, retrying", "err", err, "wait", wait.String())
		}),
	)
}

func (f *Fetcher) downloadTo(ctx context.Context, sha256, targetPath string) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	body, total, err := f.client.FetchArtifact(ctx, sha256)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	out, err := os.Create(targetPath)
	if err != nil {
		return 0, &LocalIOError{Path: targetPath, Err: err}
	}

	pr := progress.NewReader(&streamReader{r: body}, total, progressInterval, func(read, total int64) {
		if total > 0 {
			logger.Debug("download progress",
				"read", humanize.Bytes(uint64(read)),
				"total", humanize.Bytes(uint64(total)))
		} else {
			logger.Debug("download progress", "read", humanize.Bytes(uint64(read)))
		}
	})

	written, err := io.Copy(out, pr)
	if err != nil {
		out.Close()
		os.Remove(targetPath)

		var retryErr *RetryableError
		if errors.As(err, &retryErr) {
			return 0, err
		}

		return 0, &LocalIOError{Path: targetPath, Err: err}
	}

	if err := out.Close(); err != nil {
		os.Remove(targetPath)

		return 0, &LocalIOError{Path: targetPath, Err: err}
	}

	return written, nil
}

func (f *Fetcher) record(ctx context.Context, state *checkpoint.ProgressState, item dataset.WorkItem, outcome Outcome, duration time.Duration) {
	state.Record(item.Identifier, outcome.Bucket())

	var downloaded int64
	if outcome.Kind == OutcomeDownloaded {
		downloaded = outcome.Bytes
	}

	f.opts.Metrics.RecordFetch(ctx, string(outcome.Kind), downloaded, duration)

	if f.opts.Ledger != nil {
		rec := storage.FetchRecord{
			Identifier: item.Identifier,
			FilePath:   TargetFilename(item),
			Outcome:    string(outcome.Kind),
			Bytes:      outcome.Bytes,
			Reason:     outcome.Reason,
			RunID:      state.RunID,
		}

		if err := f.opts.Ledger.RecordFetch(rec); err != nil {
			logctx.LoggerFromContext(ctx).Warn("could not record fetch in ledger", "identifier", item.Identifier, "err", err)
		}
	}
}

func (f *Fetcher) flush(state *checkpoint.ProgressState, logger *slog.Logger) {
	if err := f.store.Flush(state); err != nil {
		logger.Warn("could not flush checkpoint", "err", err)
	}
}

func (f *Fetcher) removeTarget(targetPath string, logger *slog.Logger) {
	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove partial file", "target", targetPath, "err", err)
	}
}

func allProcessed(state *checkpoint.ProgressState, items []dataset.WorkItem) bool {
	for _, item := range items {
		if !state.IsProcessed(item.Identifier) {
			return false
		}
	}

	return true
}

// streamReader classifies read-side failures of the response body as
// retryable, so an interrupted transfer is distinguished from a disk-write
// failure inside io.Copy.
type streamReader struct {
	r io.Reader
}

func (s *streamReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = &RetryableError{Operation: "read_stream", Reason: err.Error(), Err: err}
	}

	return n, err
}
