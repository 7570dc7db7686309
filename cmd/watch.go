package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Y006/phd-site/internal/build"
	"github.com/Y006/phd-site/internal/config"
	"github.com/Y006/phd-site/internal/watcher"
)

var watchDebounce time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the site when sources change",
	Long: `Watch runs an initial build, then monitors the source and assets
directories and re-runs the incremental build whenever files change.
Rapid bursts of changes are grouped into a single rebuild.

Press Ctrl+C to stop watching.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "delay before rebuilding after a change")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)
	pipeline := build.New(cfg, logger, nil)

	if summary, err := pipeline.Run(ctx); err != nil {
		return err
	} else {
		printSummary(cmd, summary)
	}

	fw, err := watcher.NewFileWatcher(watchDebounce, logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoStagingFilter)
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		logger.Info(ctx, "sources changed, rebuilding", "files", len(events))
		summary, err := pipeline.Run(ctx)
		if err != nil {
			logger.Error(ctx, err, "rebuild failed")
			return err
		}
		printSummary(cmd, summary)
		return nil
	})

	if err := fw.AddRecursive(cfg.Paths.Source); err != nil {
		return err
	}
	if _, statErr := os.Stat(cfg.Paths.Assets); statErr == nil {
		if err := fw.AddRecursive(cfg.Paths.Assets); err != nil {
			return err
		}
	}

	fw.Start(ctx)

	cmd.Printf("Watching %s for changes (Ctrl+C to stop)\n", cfg.Paths.Source)
	<-ctx.Done()
	return nil
}
