package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ymzhao/logleaks/internal/classify"
	"github.com/ymzhao/logleaks/internal/logctx"
	"github.com/ymzhao/logleaks/internal/tabular"
)

func newClassifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <library> <flows.csv>...",
		Short: "Assign log levels to FlowDroid sink statements",
		Long: `Classify reads the sink column of FlowDroid data-flow exports and assigns
each statement a log level using the keyword rules of the given logging
library. Two files are written next to each input: a per-row detail table
and a level distribution summary. Files without a sink column are reported
and skipped.

Libraries: ` + knownLibraries() + `.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runClassify(cmd.Context(), args[0], args[1:])
		},
	}
}

func knownLibraries() string {
	names, err := classify.Names()
	if err != nil {
		return ""
	}

	return strings.Join(names, ", ")
}

func (app *App) runClassify(ctx context.Context, library string, paths []string) error {
	logger := logctx.LoggerFromContext(ctx)

	rs, err := classify.RuleSetFor(library)
	if err != nil {
		return err
	}

	for _, path := range paths {
		table, err := tabular.ReadFile(path)
		if err != nil {
			logger.Error("cannot read input table, skipping", "path", path, "err", err)

			continue
		}

		res, err := classify.Run(rs, table, path)
		if err != nil {
			logger.Error("cannot classify table, skipping", "path", path, "err", err)

			continue
		}

		base := strings.TrimSuffix(path, filepath.Ext(path))
		detailPath := fmt.Sprintf("%s_%s_log_levels.csv", base, library)
		summaryPath := fmt.Sprintf("%s_%s_log_level_summary.csv", base, library)

		if err := tabular.WriteFile(detailPath, res.Detail); err != nil {
			logger.Error("cannot write detail table", "path", detailPath, "err", err)

			continue
		}

		if err := tabular.WriteFile(summaryPath, res.Summary); err != nil {
			logger.Error("cannot write summary table", "path", summaryPath, "err", err)

			continue
		}

		app.printClassifySummary(path, library, res)
	}

	return nil
}

func (app *App) printClassifySummary(path, library string, res *classify.Result) {
	fmt.Fprintf(app.out, "\n%s (%s)\n", path, library)
	fmt.Fprintf(app.out, "Rows: %d total, %d related to the library\n", res.Total, res.Related)

	for _, row := range res.Summary.Rows {
		fmt.Fprintf(app.out, "  %-14s %6s  (%s%%)\n", row["log_level"], row["count"], row["percentage"])
	}
}
