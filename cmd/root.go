// Package cmd provides the command-line interface for the site builder
// with configuration management supporting multiple sources.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--source, --output, etc.)
//  2. PHDSITE_CONFIG_FILE environment variable - custom config file path
//  3. Individual environment variables (PHDSITE_PATHS_SOURCE, etc.)
//  4. Configuration file (.phdsite.yml)
//  5. Built-in defaults
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Y006/phd-site/internal/config"
	"github.com/Y006/phd-site/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "phd-site",
	Short: "Incremental builder for a password-protected static site",
	Long: `phd-site turns a tree of Markdown and HTML sources into a static
site, encrypting everything outside public/ directories behind per-file
passwords and rebuilding only what changed since the last run.

Key features:
  • Content-hash change detection with a persisted build cache
  • Stable per-file passwords minted once and kept across rebuilds
  • Markdown rendering with syntax highlighting and math support
  • Generated index page listing protected and public documents

Quick start:
  phd-site init                   Scaffold a new site
  phd-site build                  Build the site incrementally
  phd-site watch                  Rebuild on source changes
  phd-site passwords              List the password registry`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .phdsite.yml, can also use PHDSITE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes viper with support for multiple config sources.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PHDSITE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".phdsite")
	}

	viper.SetEnvPrefix("PHDSITE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine; defaults and flags carry the run.
	_ = viper.ReadInConfig()
}

// newLogger builds the run logger from loaded configuration.
func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}
