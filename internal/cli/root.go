// Package cli wires the logleaks subcommands: fetch, classify, scan, merge,
// split, filter and report.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ymzhao/logleaks/internal/config"
	"github.com/ymzhao/logleaks/internal/logctx"
)

// App carries the pieces every command needs.
type App struct {
	cfg *config.Config
	out io.Writer
}

// Execute runs the CLI and returns the process exit code. Per-item fetch
// failures do not make the exit code non-zero; only setup errors do.
func Execute() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)

		return 1
	}

	logger := logctx.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{cfg: cfg, out: os.Stdout}

	root := newRootCommand(app)
	if err := root.ExecuteContext(logctx.WithLogger(ctx, logger)); err != nil {
		logger.Error("fatal error", "err", err)

		return 1
	}

	return 0
}

func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "logleaks",
		Short:         "Research tooling for the Android logging-library privacy study",
		Long:          "logleaks collects APK corpora from AndroZoo, classifies FlowDroid sink statements by logging-library level, and sorts analysis logs into outcome categories.",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.AddCommand(
		newFetchCommand(app),
		newClassifyCommand(app),
		newScanCommand(app),
		newMergeCommand(app),
		newSplitCommand(app),
		newFilterCommand(app),
		newReportCommand(app),
	)

	return root
}
