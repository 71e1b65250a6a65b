package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ymzhao/logleaks/internal/logctx"
	"github.com/ymzhao/logleaks/internal/logscan"
)

// FlowDroid marker lines the named scan categories key on.
const (
	markerTermination  = "[main] ERROR soot.jimple.infoflow.android.SetupApplication$InPlaceInfoflow - Could not wait for executor termination"
	markerNoEntryPoint = "[main] WARN soot.jimple.infoflow.android.SetupApplication - No entry points"
	markerNoSinks      = "[main] ERROR soot.jimple.infoflow.android.SetupApplication$InPlaceInfoflow - No sinks found, aborting analysis"
	markerNoSources    = "No sources found, aborting analysis"
)

type scanCategory struct {
	title   string
	matcher logscan.Matcher
}

func scanCategories() map[string]scanCategory {
	return map[string]scanCategory{
		"leak": {
			title:   "Non-Zero Leaks Report",
			matcher: logscan.LeakMatcher{},
		},
		"zero-leak": {
			title:   "Zero Leaks Report",
			matcher: logscan.ZeroLeakMatcher{},
		},
		"termination": {
			title:   "Executor Termination Failures Report",
			matcher: logscan.SubstringMatcher{Needle: markerTermination},
		},
		"no-entry-point": {
			title:   "No Entry Points Report",
			matcher: logscan.SubstringMatcher{Needle: markerNoEntryPoint},
		},
		"no-sinks": {
			title:   "No Sinks Found Report",
			matcher: logscan.SubstringMatcher{Needle: markerNoSinks},
		},
		"other-error": {
			title: "Uncategorized Errors Report",
			matcher: logscan.GenericErrorMatcher{Excludes: []string{
				"No sinks found, aborting analysis",
				markerNoSources,
				"Could not wait for executor termination",
			}},
		},
	}
}

type scanOptions struct {
	pattern string
	output  string
	moveTo  string
	dryRun  bool
}

func newScanCommand(app *App) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <category> <log-path>",
		Short: "Sort FlowDroid run logs into an outcome category",
		Long: `Scan walks a log directory (or takes a single file), finds the files whose
content matches the category, writes a report, and moves the matches into a
category directory. Name collisions in the destination get a timestamp
suffix.

Categories: ` + strings.Join(scanCategoryNames(), ", ") + `.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runScan(cmd.Context(), args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.pattern, "pattern", "p", `\.log$`, "regexp that file names must match when walking a directory")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "report file path (default <category>_report.txt)")
	cmd.Flags().StringVarP(&opts.moveTo, "move-to", "m", "", "destination directory for matches (default a sibling directory named after the category)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report matches without moving files")

	return cmd
}

func scanCategoryNames() []string {
	categories := scanCategories()

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (app *App) runScan(ctx context.Context, category, root string, opts scanOptions) error {
	logger := logctx.LoggerFromContext(ctx)

	cat, ok := scanCategories()[category]
	if !ok {
		return fmt.Errorf("unknown category %q, expected one of: %s", category, strings.Join(scanCategoryNames(), ", "))
	}

	namePattern, err := regexp.Compile(opts.pattern)
	if err != nil {
		return fmt.Errorf("invalid file name pattern: %w", err)
	}

	matches, err := logscan.ScanPath(ctx, root, namePattern, cat.matcher)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = category + "_report.txt"
	}

	if err := logscan.WriteReport(output, cat.title, matches); err != nil {
		return err
	}

	fmt.Fprintf(app.out, "Matched %d of the scanned files, report written to %s\n", len(matches), output)

	if opts.dryRun || len(matches) == 0 {
		return nil
	}

	moveTo := opts.moveTo
	if moveTo == "" {
		moveTo = filepath.Join(filepath.Dir(filepath.Clean(root)), category)
	}

	moved, failed, err := logscan.MoveAll(ctx, matches, moveTo)
	if err != nil {
		return err
	}

	if failed > 0 {
		logger.Warn("some matches could not be moved", "failed", failed)
	}

	fmt.Fprintf(app.out, "Moved %d files to %s\n", moved, moveTo)

	return nil
}
