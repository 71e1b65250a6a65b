package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/ymzhao/logleaks/internal/fetch"
	"github.com/ymzhao/logleaks/internal/storage/sqlite"
)

func newReportCommand(app *App) *cobra.Command {
	var failures bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the fetch ledger",
		Long:  "Report aggregates the sqlite fetch ledger by outcome, optionally listing every failed item with its recorded reason.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runReport(cmd.Context(), failures)
		},
	}

	cmd.Flags().BoolVar(&failures, "failures", false, "list each failed item with its reason")

	return cmd
}

func (app *App) runReport(_ context.Context, failures bool) error {
	db, err := sqlite.InitDB(app.cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("cannot open fetch ledger %s: %w", app.cfg.LedgerPath, err)
	}
	defer db.Close()

	repo := sqlite.NewFetchRepository(db)

	counts, err := repo.CountByOutcome()
	if err != nil {
		return err
	}

	if len(counts) == 0 {
		fmt.Fprintln(app.out, "The fetch ledger is empty.")

		return nil
	}

	fmt.Fprintf(app.out, "%-20s %8s %12s\n", "OUTCOME", "COUNT", "BYTES")

	for _, c := range counts {
		fmt.Fprintf(app.out, "%-20s %8d %12s\n", c.Outcome, c.Count, humanize.Bytes(uint64(c.Bytes)))
	}

	if !failures {
		return nil
	}

	records, err := repo.GetFetches()
	if err != nil {
		return err
	}

	fmt.Fprintln(app.out, "\nFAILED ITEMS")

	listed := 0

	for _, rec := range records {
		if rec.Outcome != string(fetch.OutcomeFailedPermanent) && rec.Outcome != string(fetch.OutcomeFailedRetryable) {
			continue
		}

		listed++
		fmt.Fprintf(app.out, "%s (%s): %s\n", rec.Identifier, rec.Outcome, rec.Reason)
	}

	if listed == 0 {
		fmt.Fprintln(app.out, "none")
	}

	return nil
}
