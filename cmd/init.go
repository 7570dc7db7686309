package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Scaffold a new site",
	Long: `Init creates the directory layout the builder expects: a source
tree with a sample protected note and a public/ section, a stylesheet
directory, and a starter .phdsite.yml.

With a name argument the scaffold is created in a new directory of that
name; without one it is created in the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "."
	name := "my-site"
	if len(args) == 1 {
		root = args[0]
		name = filepath.Base(args[0])
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("creating project directory: %w", err)
		}
	} else if wd, err := os.Getwd(); err == nil {
		name = filepath.Base(wd)
	}

	title := cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))

	dirs := []string{
		filepath.Join(root, "src", "public"),
		filepath.Join(root, "assets"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	files := map[string]string{
		filepath.Join(root, ".phdsite.yml"):                fmt.Sprintf(configTemplate, title),
		filepath.Join(root, "src", "notes.md"):             protectedNoteTemplate,
		filepath.Join(root, "src", "public", "welcome.md"): publicNoteTemplate,
		filepath.Join(root, "assets", "md_style.css"):      markdownStyleTemplate,
		filepath.Join(root, "assets", "index.css"):         indexStyleTemplate,
	}
	for path, content := range files {
		if _, err := os.Stat(path); err == nil {
			cmd.Printf("  skip %s (exists)\n", path)
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		cmd.Printf("  create %s\n", path)
	}

	cmd.Printf("\nScaffolded %q. Next steps:\n", title)
	cmd.Println("  phd-site build     Build the site into docs/")
	cmd.Println("  phd-site watch     Rebuild on changes")
	return nil
}

const configTemplate = `site:
  title: %q
  subtitle: "Personal document library"

paths:
  source: src
  output: docs
  assets: assets

protect:
  command: staticrypt
  remember_days: 7
`

const protectedNoteTemplate = `# Research Notes

Everything outside a public/ directory is encrypted with its own
password. Run ` + "`phd-site passwords`" + ` to see the registry.

## Math

Inline math like $e^{i\pi} + 1 = 0$ renders in the browser.
`

const publicNoteTemplate = `# Welcome

Files under a public/ directory are published without encryption.
`

const markdownStyleTemplate = `body {
  max-width: 48rem;
  margin: 2rem auto;
  padding: 0 1rem;
  font-family: Georgia, serif;
  line-height: 1.6;
}

pre {
  padding: 1rem;
  overflow-x: auto;
  background: #f6f8fa;
  border-radius: 6px;
}
`

const indexStyleTemplate = `body {
  max-width: 40rem;
  margin: 3rem auto;
  padding: 0 1rem;
  font-family: -apple-system, sans-serif;
}

ul {
  list-style: none;
  padding: 0;
}

li {
  padding: 0.4rem 0;
  border-bottom: 1px solid #eee;
}
`
