// Package config provides configuration management for the site builder
// using Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// Configuration is read from .phdsite.yml in the working directory, with
// environment variable overrides using the PHDSITE_ prefix and flag
// overrides bound by the cmd package. Every value has a working default so
// the builder runs with no configuration at all, following the directory
// conventions src/ -> docs/ with assets/ copied alongside.
package config

import (
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config is the root configuration for the site builder.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Paths   PathsConfig   `yaml:"paths"`
	Build   BuildConfig   `yaml:"build"`
	Protect ProtectConfig `yaml:"protect"`
	Log     LogConfig     `yaml:"log"`
}

// SiteConfig holds presentation settings for generated pages.
type SiteConfig struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
}

// PathsConfig holds the directory conventions the builder operates on.
type PathsConfig struct {
	Source string `yaml:"source"`
	Output string `yaml:"output"`
	Assets string `yaml:"assets"`
	// CacheFile defaults to <output>/.build_cache when empty.
	CacheFile string `yaml:"cache_file"`
	// RegistryFile is the persisted secret registry.
	RegistryFile string `yaml:"registry_file"`
}

// BuildConfig holds incremental-build settings.
type BuildConfig struct {
	// Workers bounds concurrent file processing. Zero means automatic
	// (NumCPU capped at 4).
	Workers int `yaml:"workers"`
	// Force rebuilds every file regardless of the fingerprint cache.
	Force bool `yaml:"force"`
}

// ProtectConfig holds the external protection tool invocation settings.
type ProtectConfig struct {
	Command      string `yaml:"command"`
	StagingDir   string `yaml:"staging_dir"`
	RememberDays int    `yaml:"remember_days"`
	Title        string `yaml:"title"`
	Instructions string `yaml:"instructions"`
	Button       string `yaml:"button"`
	SecretLength int    `yaml:"secret_length"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SetDefaults registers every configuration default with viper. The cmd
// package calls this before binding flags so precedence stays
// flag > env > file > default.
func SetDefaults() {
	viper.SetDefault("site.title", "PhD Site")
	viper.SetDefault("site.subtitle", "Personal document library")

	viper.SetDefault("paths.source", "src")
	viper.SetDefault("paths.output", "docs")
	viper.SetDefault("paths.assets", "assets")
	viper.SetDefault("paths.cache_file", "")
	viper.SetDefault("paths.registry_file", "passwords.json")

	viper.SetDefault("build.workers", 0)
	viper.SetDefault("build.force", false)

	viper.SetDefault("protect.command", "staticrypt")
	viper.SetDefault("protect.staging_dir", "encrypted")
	viper.SetDefault("protect.remember_days", 7)
	viper.SetDefault("protect.title", "Password required")
	viper.SetDefault("protect.instructions", "This page is protected. Enter the password to view it.")
	viper.SetDefault("protect.button", "Unlock")
	viper.SetDefault("protect.secret_length", 16)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Load builds a Config from viper's current state and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Site: SiteConfig{
			Title:    viper.GetString("site.title"),
			Subtitle: viper.GetString("site.subtitle"),
		},
		Paths: PathsConfig{
			Source:       viper.GetString("paths.source"),
			Output:       viper.GetString("paths.output"),
			Assets:       viper.GetString("paths.assets"),
			CacheFile:    viper.GetString("paths.cache_file"),
			RegistryFile: viper.GetString("paths.registry_file"),
		},
		Build: BuildConfig{
			Workers: viper.GetInt("build.workers"),
			Force:   viper.GetBool("build.force"),
		},
		Protect: ProtectConfig{
			Command:      viper.GetString("protect.command"),
			StagingDir:   viper.GetString("protect.staging_dir"),
			RememberDays: viper.GetInt("protect.remember_days"),
			Title:        viper.GetString("protect.title"),
			Instructions: viper.GetString("protect.instructions"),
			Button:       viper.GetString("protect.button"),
			SecretLength: viper.GetInt("protect.secret_length"),
		},
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills the values that derive from other settings.
func (c *Config) applyDefaults() {
	if c.Paths.CacheFile == "" {
		c.Paths.CacheFile = filepath.Join(c.Paths.Output, ".build_cache")
	}
	if c.Build.Workers <= 0 {
		c.Build.Workers = runtime.NumCPU()
		if c.Build.Workers > 4 {
			c.Build.Workers = 4
		}
	}
}

// MarkdownStylePath returns the stylesheet embedded into rendered pages,
// or "" when the assets directory has none.
func (c *Config) MarkdownStylePath() string {
	return filepath.Join(c.Paths.Assets, "md_style.css")
}

// IndexStylePath returns the stylesheet embedded into the manifest page.
func (c *Config) IndexStylePath() string {
	return filepath.Join(c.Paths.Assets, "index.css")
}
