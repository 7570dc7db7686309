package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Y006/phd-site/internal/config"
	"github.com/Y006/phd-site/internal/secrets"
)

var (
	passwordsShow   bool
	passwordsFormat string
)

// passwordsCmd represents the passwords command
var passwordsCmd = &cobra.Command{
	Use:   "passwords",
	Short: "List the password registry",
	Long: `Passwords lists every protected file and its registered password.
Passwords are masked unless --show is given.

The registry is append-only: a password is minted the first time a file
is protected and never changes for as long as the file keeps its path.`,
	RunE: runPasswords,
}

// passwordEntry is the export shape for one registry record.
type passwordEntry struct {
	Path     string `json:"path" yaml:"path"`
	Name     string `json:"name" yaml:"name"`
	Password string `json:"password" yaml:"password"`
	Created  string `json:"created_at" yaml:"created_at"`
}

func init() {
	rootCmd.AddCommand(passwordsCmd)

	passwordsCmd.Flags().BoolVar(&passwordsShow, "show", false, "show passwords in clear text")
	passwordsCmd.Flags().StringVar(&passwordsFormat, "format", "table", "output format (table, json, yaml)")
}

func runPasswords(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	registry, err := secrets.Load(cfg.Paths.RegistryFile)
	if err != nil {
		return err
	}

	entries := exportEntries(registry, passwordsShow)

	switch passwordsFormat {
	case "table":
		if len(entries) == 0 {
			cmd.Println("No passwords registered yet. Run a build first.")
			return nil
		}
		for _, e := range entries {
			cmd.Printf("%-40s  %-24s  %s\n", e.Path, e.Name, e.Password)
		}
		return nil
	case "json":
		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	case "yaml":
		out, err := yaml.Marshal(entries)
		if err != nil {
			return err
		}
		cmd.Print(string(out))
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", passwordsFormat)
	}
}

func exportEntries(registry *secrets.Registry, show bool) []passwordEntry {
	paths := make([]string, 0, len(registry.Files))
	for path := range registry.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	entries := make([]passwordEntry, 0, len(paths))
	for _, path := range paths {
		record := registry.Files[path]
		password := record.Password
		if !show {
			password = "********"
		}
		entries = append(entries, passwordEntry{
			Path:     path,
			Name:     record.Name,
			Password: password,
			Created:  record.CreatedAt.Format("2006-01-02"),
		})
	}
	return entries
}
