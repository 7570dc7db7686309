package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Y006/phd-site/internal/config"
)

var cleanAll bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove build outputs",
	Long: `Clean removes the output directory (including the build cache) and
any leftover protection staging directory. The password registry is
never touched; use --all to remove it as well.`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "also remove the password registry")
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	targets := []string{cfg.Paths.Output, cfg.Protect.StagingDir}
	if cleanAll {
		targets = append(targets, cfg.Paths.RegistryFile)
	}

	for _, target := range targets {
		if target == "" {
			continue
		}
		if _, err := os.Stat(target); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("removing %s: %w", target, err)
		}
		cmd.Printf("  removed %s\n", target)
	}
	return nil
}
