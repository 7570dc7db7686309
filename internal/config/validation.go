package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Y006/phd-site/internal/errors"
)

// Validate checks the configuration for values the builder cannot work
// with. Path fields are checked for traversal outside the project root,
// since cache, registry, and output locations are later written to
// destructively.
func (c *Config) Validate() error {
	pathFields := map[string]string{
		"paths.source":        c.Paths.Source,
		"paths.output":        c.Paths.Output,
		"paths.assets":        c.Paths.Assets,
		"paths.cache_file":    c.Paths.CacheFile,
		"paths.registry_file": c.Paths.RegistryFile,
		"protect.staging_dir": c.Protect.StagingDir,
	}
	for field, value := range pathFields {
		if value == "" {
			return errors.NewConfigError(fmt.Sprintf("%s must not be empty", field), nil)
		}
		if err := validatePath(field, value); err != nil {
			return err
		}
	}

	if c.Paths.Source == c.Paths.Output {
		return errors.NewConfigError("paths.source and paths.output must differ", nil)
	}

	if c.Protect.Command == "" {
		return errors.NewConfigError("protect.command must not be empty", nil)
	}
	if c.Protect.RememberDays < 0 {
		return errors.NewConfigError("protect.remember_days must not be negative", nil)
	}
	if c.Protect.SecretLength < 8 {
		return errors.NewConfigError("protect.secret_length must be at least 8", nil)
	}

	if c.Build.Workers < 1 {
		return errors.NewConfigError("build.workers must be at least 1", nil)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.NewConfigError(
			fmt.Sprintf("log.format must be \"text\" or \"json\", got %q", c.Log.Format), nil)
	}

	return nil
}

// validatePath rejects paths that escape the project root.
func validatePath(field, value string) error {
	clean := filepath.Clean(value)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errors.NewConfigError(
			fmt.Sprintf("%s must not point outside the project root: %q", field, value), nil)
	}
	return nil
}
