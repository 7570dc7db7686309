package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Y006/phd-site/internal/build"
	"github.com/Y006/phd-site/internal/config"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the site incrementally",
	Long: `Build scans the source tree, renders Markdown to HTML, copies
assets and plain files, and encrypts everything outside public/
directories with its registered password.

Only files whose content changed since the last run are reprocessed.
Use --force to rebuild everything from scratch.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("source", "src", "source directory to build from")
	buildCmd.Flags().String("output", "docs", "output directory for the generated site")
	buildCmd.Flags().Bool("force", false, "rebuild every file, ignoring the cache")
	buildCmd.Flags().Int("workers", 0, "concurrent file workers (0 = automatic)")

	viper.BindPFlag("paths.source", buildCmd.Flags().Lookup("source"))
	viper.BindPFlag("paths.output", buildCmd.Flags().Lookup("output"))
	viper.BindPFlag("build.force", buildCmd.Flags().Lookup("force"))
	viper.BindPFlag("build.workers", buildCmd.Flags().Lookup("workers"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)
	pipeline := build.New(cfg, logger, nil)

	summary, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(cmd, summary)

	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed to build", summary.Failed)
	}
	return nil
}

func printSummary(cmd *cobra.Command, summary *build.Summary) {
	cmd.Printf("Built %d file(s), skipped %d unchanged, %d failed (%.2fs)\n",
		summary.Processed, summary.Skipped, summary.Failed,
		summary.Duration.Seconds())

	for _, failure := range summary.Failures {
		cmd.Printf("  FAILED %s (%s): %s\n", failure.Path, failure.Stage, failure.Message)
	}
}
