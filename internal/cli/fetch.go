package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/ymzhao/logleaks/internal/checkpoint"
	"github.com/ymzhao/logleaks/internal/dataset"
	"github.com/ymzhao/logleaks/internal/fetch"
	"github.com/ymzhao/logleaks/internal/logctx"
	"github.com/ymzhao/logleaks/internal/notifier"
	"github.com/ymzhao/logleaks/internal/remote/androzoo"
	"github.com/ymzhao/logleaks/internal/statusd"
	"github.com/ymzhao/logleaks/internal/storage"
	"github.com/ymzhao/logleaks/internal/storage/sqlite"
	"github.com/ymzhao/logleaks/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

type fetchOptions struct {
	maxItems   int
	sampleRate float64
	market     string
	yearFrom   int
	yearTo     int

	appList string
	year    int

	resume     bool
	dryRun     bool
	delay      time.Duration
	maxRetries uint
	flushEvery int
	checkpoint string
	noLedger   bool
	statusAddr string
}

func newFetchCommand(app *App) *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch <metadata.csv> <dest-dir>",
		Short: "Download APKs listed in an AndroZoo metadata table",
		Long: `Fetch selects rows from an AndroZoo latest.csv export and downloads the
matching APKs one at a time. Progress is checkpointed so an interrupted run
can be resumed with --resume. Per-item failures are recorded and the run
continues; only setup problems abort it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runFetch(cmd.Context(), args[0], args[1], opts)
		},
	}

	cmd.Flags().IntVar(&opts.maxItems, "max-items", 0, "cap the number of items to process (0 = no cap)")
	cmd.Flags().Float64Var(&opts.sampleRate, "sample-rate", 1, "deterministic sample fraction of the filtered rows")
	cmd.Flags().StringVar(&opts.market, "market", "play.google.com", "keep rows from this market only (empty = all)")
	cmd.Flags().IntVar(&opts.yearFrom, "year-from", 2016, "keep rows scanned in or after this year (0 = no lower bound)")
	cmd.Flags().IntVar(&opts.yearTo, "year-to", 2021, "keep rows scanned in or before this year (0 = no upper bound)")
	cmd.Flags().StringVar(&opts.appList, "app-list", "", "CSV with an app_name column; fetch those apps instead of sampling")
	cmd.Flags().IntVar(&opts.year, "year", 2023, "with --app-list, restrict the lookup to this scan year (0 = any year)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "resume from the checkpoint file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "select and tally items without downloading")
	cmd.Flags().DurationVar(&opts.delay, "delay", time.Second, "courtesy delay between items that hit the network")
	cmd.Flags().UintVar(&opts.maxRetries, "max-retries", 3, "attempts per item before it is recorded as failed")
	cmd.Flags().IntVar(&opts.flushEvery, "flush-every", 10, "checkpoint flush cadence in processed items")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "download_progress.json", "path of the progress snapshot file")
	cmd.Flags().BoolVar(&opts.noLedger, "no-ledger", false, "skip recording outcomes in the sqlite ledger")
	cmd.Flags().StringVar(&opts.statusAddr, "status-addr", "", "serve /healthz, /progress and /metrics on this address during the run")

	return cmd
}

func (app *App) runFetch(ctx context.Context, tablePath, destDir string, opts fetchOptions) error {
	logger := logctx.LoggerFromContext(ctx)

	if app.cfg.APIKey == "" && !opts.dryRun {
		return &fetch.SetupError{Resource: "api key", Reason: "LOGLEAKS_API_KEY is not set"}
	}

	items, notFound, err := app.selectItems(ctx, tablePath, opts)
	if err != nil {
		return err
	}

	for _, name := range notFound {
		logger.Warn("app not present in metadata table", "app_name", name)
	}

	if len(items) == 0 {
		logger.Warn("selection matched no work items")
	} else {
		logger.Info("selected work items", "count", len(items), "dry_run", opts.dryRun)
	}

	var ledger storage.FetchWriteRepository

	if !opts.noLedger {
		db, err := sqlite.InitDB(app.cfg.LedgerPath)
		if err != nil {
			return &fetch.SetupError{Resource: app.cfg.LedgerPath, Reason: "cannot open fetch ledger", Err: err}
		}
		defer db.Close()

		ledger = sqlite.NewFetchRepository(db)
	}

	var metrics *telemetry.Telemetry

	if opts.statusAddr != "" {
		metrics, err = telemetry.New("logleaks")
		if err != nil {
			return &fetch.SetupError{Resource: "telemetry", Reason: "cannot initialize metrics", Err: err}
		}
		defer metrics.Shutdown(context.Background())
	}

	client := androzoo.NewClient(app.cfg.BaseURL, app.cfg.APIKey, app.cfg.Timeout)
	store := checkpoint.NewStore(opts.checkpoint)

	policy := fetch.DefaultRetryPolicy()
	policy.MaxAttempts = opts.maxRetries

	fetcher := fetch.NewFetcher(client, destDir, store, fetch.Options{
		Policy:     policy,
		Delay:      opts.delay,
		FlushEvery: opts.flushEvery,
		DryRun:     opts.dryRun,
		Ledger:     ledger,
		Metrics:    metrics,
	})

	state, err := app.runWithStatus(ctx, fetcher, items, opts)
	if err != nil {
		return err
	}

	app.printFetchSummary(state.Stats, len(notFound))

	if app.cfg.WebhookURL != "" {
		n := &notifier.WebhookNotifier{WebhookURL: app.cfg.WebhookURL}

		msg := fmt.Sprintf("logleaks fetch finished: %d downloaded, %d skipped, %d failed (%.1f%% success)",
			state.Stats.Succeeded, state.Stats.SkippedExisting, state.Stats.Failed, state.Stats.SuccessRate())
		if err := n.Notify(msg); err != nil {
			logger.Warn("could not deliver webhook notification", "err", err)
		}
	}

	return nil
}

// selectItems resolves the work list, either by filter-and-sample over the
// whole table or by looking up an explicit app list.
func (app *App) selectItems(ctx context.Context, tablePath string, opts fetchOptions) ([]dataset.WorkItem, []string, error) {
	table, err := dataset.Load(tablePath)
	if err != nil {
		return nil, nil, &fetch.SetupError{Resource: tablePath, Reason: "cannot load metadata table", Err: err}
	}

	if opts.appList != "" {
		names, err := dataset.LoadAppList(opts.appList)
		if err != nil {
			return nil, nil, &fetch.SetupError{Resource: opts.appList, Reason: "cannot load app list", Err: err}
		}

		found, notFound := dataset.Resolve(ctx, table, names, opts.market, opts.year)
		if opts.maxItems > 0 && len(found) > opts.maxItems {
			found = found[:opts.maxItems]
		}

		return found, notFound, nil
	}

	items, err := dataset.Select(ctx, table, dataset.Selection{
		Market:     opts.market,
		YearFrom:   opts.yearFrom,
		YearTo:     opts.yearTo,
		SampleRate: opts.sampleRate,
		MaxItems:   opts.maxItems,
	})
	if err != nil {
		return nil, nil, &fetch.SetupError{Resource: tablePath, Reason: "invalid selection", Err: err}
	}

	return items, nil, nil
}

// runWithStatus runs the fetch loop, with the status server alongside it when
// --status-addr is set. The server lives exactly as long as the loop.
func (app *App) runWithStatus(ctx context.Context, fetcher *fetch.Fetcher, items []dataset.WorkItem, opts fetchOptions) (*checkpoint.ProgressState, error) {
	if opts.statusAddr == "" {
		return fetcher.Run(ctx, items, opts.resume)
	}

	logger := logctx.LoggerFromContext(ctx)
	srv := statusd.NewServer(ctx, opts.statusAddr, opts.checkpoint)

	var state *checkpoint.ProgressState

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("status server listening", "addr", opts.statusAddr)

		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server failed: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		var err error
		state, err = fetcher.Run(gctx, items, opts.resume)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("status server shutdown failed", "err", shutdownErr)
		}

		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return state, nil
}

func (app *App) printFetchSummary(stats checkpoint.Stats, notFound int) {
	fmt.Fprintln(app.out, "============================================================")
	fmt.Fprintln(app.out, "DOWNLOAD SUMMARY")
	fmt.Fprintln(app.out, "============================================================")
	fmt.Fprintf(app.out, "Total items processed:     %d\n", stats.Total())
	fmt.Fprintf(app.out, "Successfully downloaded:   %d\n", stats.Succeeded)
	fmt.Fprintf(app.out, "Already existed (skipped): %d\n", stats.SkippedExisting)
	fmt.Fprintf(app.out, "Download failed:           %d\n", stats.Failed)

	if notFound > 0 {
		fmt.Fprintf(app.out, "Not found in metadata:     %d\n", notFound)
	}

	fmt.Fprintf(app.out, "Success rate:              %.1f%%\n", stats.SuccessRate())
}
