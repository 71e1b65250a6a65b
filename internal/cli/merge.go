package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ymzhao/logleaks/internal/logctx"
	"github.com/ymzhao/logleaks/internal/tabular"
)

type mergeOptions struct {
	output string
	key    string
}

func newMergeCommand(app *App) *cobra.Command {
	var opts mergeOptions

	cmd := &cobra.Command{
		Use:   "merge <a.csv> <b.csv>",
		Short: "Concatenate two result tables and report app overlap",
		Long: `Merge appends the rows of the second table to the first. When the two
schemas differ the result keeps only the columns both tables share. The
overlap statistics are computed on the key column.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runMerge(cmd.Context(), args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "merged.csv", "path of the merged table")
	cmd.Flags().StringVar(&opts.key, "key", "app_name", "column the overlap statistics are keyed on")

	return cmd
}

func (app *App) runMerge(ctx context.Context, leftPath, rightPath string, opts mergeOptions) error {
	logger := logctx.LoggerFromContext(ctx)

	left, err := tabular.ReadFile(leftPath)
	if err != nil {
		return err
	}

	right, err := tabular.ReadFile(rightPath)
	if err != nil {
		return err
	}

	merged, stats, err := tabular.ConcatWithStats(left, right, opts.key)
	if err != nil {
		return err
	}

	if stats.CommonOnly {
		logger.Warn("tables have different schemas, merged on common columns only", "columns", merged.Columns)
	}

	if err := tabular.WriteFile(opts.output, merged); err != nil {
		return err
	}

	fmt.Fprintf(app.out, "Merged %d + %d rows into %s\n", stats.RowsLeft, stats.RowsRight, opts.output)
	fmt.Fprintf(app.out, "Unique %s values: %d + %d -> %d combined\n", opts.key, stats.UniqueLeft, stats.UniqueRight, stats.UniqueCombined)
	fmt.Fprintf(app.out, "Overlap: %d, only in %s: %d, only in %s: %d\n", stats.Overlap, leftPath, stats.OnlyLeft, rightPath, stats.OnlyRight)

	return nil
}
