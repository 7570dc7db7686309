package build

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Y006/phd-site/internal/config"
	siteerrors "github.com/Y006/phd-site/internal/errors"
	"github.com/Y006/phd-site/internal/secrets"
)

// fakeProtector stands in for the external tool. It writes a marker plus
// the input contents to the output path, or fails for configured outputs.
type fakeProtector struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]bool
}

func (f *fakeProtector) Protect(ctx context.Context, inputPath, outputPath, secret string) error {
	f.mu.Lock()
	f.calls = append(f.calls, inputPath)
	fail := f.failFor[filepath.Base(outputPath)]
	f.mu.Unlock()

	if fail {
		return siteerrors.NewProtectError(inputPath, "stub protection failure", nil)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return siteerrors.NewIOError(inputPath, "reading protect input", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return siteerrors.NewIOError(outputPath, "creating protect output dir", err)
	}
	out := fmt.Sprintf("PROTECTED[%s]\n%s", secret, data)
	return os.WriteFile(outputPath, []byte(out), 0o644)
}

func (f *fakeProtector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProtector) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Site: config.SiteConfig{Title: "PhD Site", Subtitle: "Documents"},
		Paths: config.PathsConfig{
			Source:       filepath.Join(root, "src"),
			Output:       filepath.Join(root, "docs"),
			Assets:       filepath.Join(root, "assets"),
			CacheFile:    filepath.Join(root, "docs", ".build_cache"),
			RegistryFile: filepath.Join(root, "passwords.json"),
		},
		Build: config.BuildConfig{Workers: 2},
		Protect: config.ProtectConfig{
			Command:      "staticrypt",
			StagingDir:   filepath.Join(root, "encrypted"),
			RememberDays: 7,
			SecretLength: 16,
		},
		Log: config.LogConfig{Level: "info", Format: "text"},
	}
}

func writeTree(t *testing.T, cfg *config.Config, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(cfg.Paths.Source, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func defaultTree() map[string]string {
	return map[string]string{
		"public/intro.md":  "# Welcome\n\nHello.",
		"notes/secret.md":  "# Secret Notes\n\nHidden.",
		"cv.html":          "<html><body>CV</body></html>",
		"figures/plot.png": "not-really-a-png",
	}
}

func runPipeline(t *testing.T, cfg *config.Config, prot *fakeProtector) *Summary {
	t.Helper()
	summary, err := New(cfg, nil, prot).Run(context.Background())
	require.NoError(t, err)
	return summary
}

func TestPipeline_FullBuild(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, defaultTree())
	require.NoError(t, os.MkdirAll(cfg.Paths.Assets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Assets, "md_style.css"), []byte("h1 { color: blue; }"), 0o644))

	prot := &fakeProtector{}
	summary := runPipeline(t, cfg, prot)

	assert.Equal(t, 4, summary.Discovered)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	// Public markdown: rendered in place, stylesheet embedded.
	page, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "public", "intro.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Welcome</h1>")
	assert.Contains(t, string(page), "h1 { color: blue; }")

	// Protected markdown: staged, protected, staging removed.
	protectedPage, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "notes", "secret.html"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(protectedPage), "PROTECTED["))
	assert.Contains(t, string(protectedPage), "Secret Notes")
	_, err = os.Stat(filepath.Join(cfg.Paths.Output, "notes", "secret.temp.html"))
	assert.True(t, os.IsNotExist(err))

	// Protected HTML: protected straight from the source file.
	cv, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "cv.html"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(cv), "PROTECTED["))

	// Opaque file: verbatim copy.
	plot, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "figures", "plot.png"))
	require.NoError(t, err)
	assert.Equal(t, "not-really-a-png", string(plot))

	// Assets copied wholesale.
	_, err = os.Stat(filepath.Join(cfg.Paths.Output, "assets", "md_style.css"))
	assert.NoError(t, err)

	// Manifest lists the three page files, protected group first.
	index, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "Secret Notes")
	assert.Contains(t, string(index), "Welcome")
	assert.Contains(t, string(index), "cv")
	assert.NotContains(t, string(index), "plot")
	assert.Less(t,
		strings.Index(string(index), "Protected documents"),
		strings.Index(string(index), "Public documents"))

	// Registry holds one secret per protected page file.
	reg, err := secrets.Load(cfg.Paths.RegistryFile)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	_, ok := reg.Lookup(filepath.Join(cfg.Paths.Source, "notes", "secret.md"))
	assert.True(t, ok)
	_, ok = reg.Lookup(filepath.Join(cfg.Paths.Source, "cv.html"))
	assert.True(t, ok)

	// Lock released.
	_, err = os.Stat(filepath.Join(cfg.Paths.Output, LockFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestPipeline_SecondRunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, defaultTree())

	prot := &fakeProtector{}
	runPipeline(t, cfg, prot)
	firstRegistry := registryFilesSection(t, cfg.Paths.RegistryFile)
	prot.reset()

	summary := runPipeline(t, cfg, prot)

	assert.Equal(t, 4, summary.Discovered)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 4, summary.Skipped)
	// No protection tool invocations on a no-change run.
	assert.Equal(t, 0, prot.callCount())
	// Registry files section is byte-for-byte unchanged.
	assert.Equal(t, firstRegistry, registryFilesSection(t, cfg.Paths.RegistryFile))

	// The manifest is still regenerated every run.
	_, err := os.Stat(filepath.Join(cfg.Paths.Output, "index.html"))
	assert.NoError(t, err)
}

func registryFilesSection(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	return string(doc["files"])
}

func TestPipeline_RebuildsOnContentChange(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, defaultTree())
	prot := &fakeProtector{}
	runPipeline(t, cfg, prot)

	writeTree(t, cfg, map[string]string{"public/intro.md": "# Welcome\n\nEdited."})
	summary := runPipeline(t, cfg, prot)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 3, summary.Skipped)

	page, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "public", "intro.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Edited.")
}

func TestPipeline_RebuildsWhenOutputMissing(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, defaultTree())
	prot := &fakeProtector{}
	runPipeline(t, cfg, prot)

	// Output cleared out-of-band; the digest alone claims up to date.
	require.NoError(t, os.Remove(filepath.Join(cfg.Paths.Output, "public", "intro.html")))

	summary := runPipeline(t, cfg, prot)
	assert.Equal(t, 1, summary.Processed)

	_, err := os.Stat(filepath.Join(cfg.Paths.Output, "public", "intro.html"))
	assert.NoError(t, err)
}

func TestPipeline_SecretStability(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, defaultTree())
	prot := &fakeProtector{}
	runPipeline(t, cfg, prot)

	key := filepath.Join(cfg.Paths.Source, "notes", "secret.md")
	reg, err := secrets.Load(cfg.Paths.RegistryFile)
	require.NoError(t, err)
	before, ok := reg.Lookup(key)
	require.True(t, ok)

	// Editing content must not rotate the secret.
	writeTree(t, cfg, map[string]string{"notes/secret.md": "# Secret Notes\n\nRewritten entirely."})
	runPipeline(t, cfg, prot)

	reg, err = secrets.Load(cfg.Paths.RegistryFile)
	require.NoError(t, err)
	after, ok := reg.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, before.Password, after.Password)

	// Renaming mints a brand-new secret under the new path identity.
	require.NoError(t, os.Rename(key, filepath.Join(cfg.Paths.Source, "notes", "renamed.md")))
	runPipeline(t, cfg, prot)

	reg, err = secrets.Load(cfg.Paths.RegistryFile)
	require.NoError(t, err)
	renamed, ok := reg.Lookup(filepath.Join(cfg.Paths.Source, "notes", "renamed.md"))
	require.True(t, ok)
	assert.NotEqual(t, before.Password, renamed.Password)
	// The old entry is kept; stale entries are harmless.
	_, ok = reg.Lookup(key)
	assert.True(t, ok)
}

func TestPipeline_FailureIsolation(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, map[string]string{
		"notes/a.md": "# A\n\nalpha",
		"notes/b.md": "# B\n\nbeta",
	})

	prot := &fakeProtector{failFor: map[string]bool{"a.html": true}}
	summary := runPipeline(t, cfg, prot)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Path, "a.md")

	// B's output exists and its cache entry was recorded; A's was not.
	_, err := os.Stat(filepath.Join(cfg.Paths.Output, "notes", "b.html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Paths.Output, "notes", "a.html"))
	assert.True(t, os.IsNotExist(err))

	cache, err := LoadCache(cfg.Paths.CacheFile)
	require.NoError(t, err)
	_, ok := cache.Digest(filepath.Join(cfg.Paths.Source, "notes", "b.md"))
	assert.True(t, ok)
	_, ok = cache.Digest(filepath.Join(cfg.Paths.Source, "notes", "a.md"))
	assert.False(t, ok)

	// Next run with a working tool retries only A.
	prot.failFor = nil
	prot.reset()
	summary = runPipeline(t, cfg, prot)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	_, err = os.Stat(filepath.Join(cfg.Paths.Output, "notes", "a.html"))
	assert.NoError(t, err)
}

func TestPipeline_SameBaseNameProtectedFiles(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, map[string]string{
		"notes/a.md": "# Notes Alpha\n\nalpha body",
		"misc/a.md":  "# Misc Bravo\n\nbravo body",
	})

	// Real tool wrapper with a stub command that copies its input into
	// the shared drop directory and lingers, so overlapping invocations
	// for the shared base name would consume each other's drop file.
	script := fmt.Sprintf("#!/bin/sh\nmkdir -p %q\ncp \"$1\" %q/\"$(basename \"$1\")\"\nsleep 0.2\n",
		cfg.Protect.StagingDir, cfg.Protect.StagingDir)
	command := filepath.Join(filepath.Dir(cfg.Paths.Source), "slow-protect")
	require.NoError(t, os.WriteFile(command, []byte(script), 0o755))
	cfg.Protect.Command = command
	cfg.Build.Workers = 2

	summary, err := New(cfg, nil, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 0, summary.Failed)

	notes, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "notes", "a.html"))
	require.NoError(t, err)
	assert.Contains(t, string(notes), "alpha body")
	assert.NotContains(t, string(notes), "bravo body")

	misc, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "misc", "a.html"))
	require.NoError(t, err)
	assert.Contains(t, string(misc), "bravo body")
	assert.NotContains(t, string(misc), "alpha body")
}

func TestPipeline_ForceRebuildsEverything(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, defaultTree())
	prot := &fakeProtector{}
	runPipeline(t, cfg, prot)

	cfg.Build.Force = true
	summary := runPipeline(t, cfg, prot)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
}

func TestPipeline_RefusesConcurrentRun(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, defaultTree())
	require.NoError(t, os.MkdirAll(cfg.Paths.Output, 0o755))

	// A live holder blocks the run.
	lockPath := filepath.Join(cfg.Paths.Output, LockFileName)
	require.NoError(t, os.WriteFile(lockPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644))

	_, err := New(cfg, nil, &fakeProtector{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestPipeline_ReclaimsStaleLock(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, defaultTree())
	require.NoError(t, os.MkdirAll(cfg.Paths.Output, 0o755))

	lockPath := filepath.Join(cfg.Paths.Output, LockFileName)
	require.NoError(t, os.WriteFile(lockPath, []byte("999999999\n"), 0o644))

	summary := runPipeline(t, cfg, &fakeProtector{})
	assert.Equal(t, 4, summary.Processed)
}

func TestPipeline_CleansStagingLeftovers(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, defaultTree())

	require.NoError(t, os.MkdirAll(cfg.Protect.StagingDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Protect.StagingDir, "orphan.temp.html"), []byte("x"), 0o644))

	runPipeline(t, cfg, &fakeProtector{})

	// Leftover staging artifacts removed, empty directory removed too.
	_, err := os.Stat(cfg.Protect.StagingDir)
	assert.True(t, os.IsNotExist(err))
}

func TestPipeline_MissingSourceIsFatal(t *testing.T) {
	cfg := testConfig(t)
	_, err := New(cfg, nil, &fakeProtector{}).Run(context.Background())
	assert.Error(t, err)
}

func TestPipeline_HiddenFilesExcluded(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg, map[string]string{
		"notes/a.md": "# A",
		".DS_Store":  "junk",
		"notes/.tmp": "junk",
	})

	summary := runPipeline(t, cfg, &fakeProtector{})
	assert.Equal(t, 1, summary.Discovered)
}
