package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ymzhao/logleaks/internal/tabular"
)

// abstractSourceClasses are the source classes whose values reach the sinks
// through an abstract toString call rather than a direct getter.
var abstractSourceClasses = []string{
	"android.widget.TextView",
	"android.text.Editable",
	"android.webkit.JavascriptInterface",
	"org.apache.http.util.EntityUtils",
}

type splitOptions struct {
	column   string
	contains string
}

func newSplitCommand(app *App) *cobra.Command {
	var opts splitOptions

	cmd := &cobra.Command{
		Use:   "split <flows.csv>",
		Short: "Split a result table on a substring of one column",
		Long: `Split partitions the rows of a table on whether a column contains a
substring (case-insensitive), writing both halves next to the input. The
defaults separate FlowDroid flows whose source is a toString call from the
rest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runSplit(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.column, "column", "source", "column to test")
	cmd.Flags().StringVar(&opts.contains, "contains", "toString", "substring deciding which half a row lands in")

	return cmd
}

func (app *App) runSplit(_ context.Context, path string, opts splitOptions) error {
	table, err := tabular.ReadFile(path)
	if err != nil {
		return err
	}

	if err := table.RequireColumns(path, opts.column); err != nil {
		return err
	}

	with, without := table.SplitContains(opts.column, opts.contains)

	dir := filepath.Dir(path)
	withPath := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", opts.column, opts.contains))
	withoutPath := filepath.Join(dir, fmt.Sprintf("%s_no_%s.csv", opts.column, opts.contains))

	if err := tabular.WriteFile(withPath, with); err != nil {
		return err
	}

	if err := tabular.WriteFile(withoutPath, without); err != nil {
		return err
	}

	total := len(table.Rows)

	fmt.Fprintf(app.out, "Split %d rows of %s on %s containing %q:\n", total, path, opts.column, opts.contains)
	fmt.Fprintf(app.out, "  %s: %d rows (%.1f%%)\n", withPath, len(with.Rows), percentage(len(with.Rows), total))
	fmt.Fprintf(app.out, "  %s: %d rows (%.1f%%)\n", withoutPath, len(without.Rows), percentage(len(without.Rows), total))

	return nil
}

type filterOptions struct {
	column   string
	contains []string
	output   string
}

func newFilterCommand(app *App) *cobra.Command {
	var opts filterOptions

	cmd := &cobra.Command{
		Use:   "filter <flows.csv>",
		Short: "Keep rows whose column contains any of the given substrings",
		Long: `Filter keeps the rows whose column contains at least one of the given
substrings (case-insensitive) and reports a per-substring breakdown. The
defaults extract the flows whose source belongs to one of the abstract
toString source classes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runFilter(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.column, "column", "source", "column to test")
	cmd.Flags().StringSliceVar(&opts.contains, "contains", abstractSourceClasses, "substrings to keep rows for (any match)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default abstract_source_methods.csv next to the input)")

	return cmd
}

func (app *App) runFilter(_ context.Context, path string, opts filterOptions) error {
	table, err := tabular.ReadFile(path)
	if err != nil {
		return err
	}

	if err := table.RequireColumns(path, opts.column); err != nil {
		return err
	}

	filtered, counts := table.FilterContainsAny(opts.column, opts.contains)

	output := opts.output
	if output == "" {
		output = filepath.Join(filepath.Dir(path), "abstract_source_methods.csv")
	}

	if err := tabular.WriteFile(output, filtered); err != nil {
		return err
	}

	total := len(table.Rows)

	fmt.Fprintf(app.out, "Kept %d of %d rows (%.1f%%) in %s\n", len(filtered.Rows), total, percentage(len(filtered.Rows), total), output)

	for _, needle := range opts.contains {
		fmt.Fprintf(app.out, "  %-45s %d rows\n", needle, counts[needle])
	}

	return nil
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}

	return float64(part) * 100 / float64(total)
}
