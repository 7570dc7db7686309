package build

import (
	"context"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Y006/phd-site/internal/config"
	"github.com/Y006/phd-site/internal/errors"
	"github.com/Y006/phd-site/internal/logging"
	"github.com/Y006/phd-site/internal/manifest"
	"github.com/Y006/phd-site/internal/protect"
	"github.com/Y006/phd-site/internal/render"
	"github.com/Y006/phd-site/internal/scanner"
	"github.com/Y006/phd-site/internal/secrets"
)

// Pipeline runs one incremental build: discover sources, decide per file
// whether the output is already up to date, render/copy/protect the rest,
// then persist the fingerprint cache and secret registry and regenerate
// the manifest.
type Pipeline struct {
	cfg       *config.Config
	logger    logging.Logger
	renderer  *render.Renderer
	protector protect.Protector
	failures  *errors.ErrorCollector
}

// Summary reports what a run did.
type Summary struct {
	Discovered int
	Processed  int
	Skipped    int
	Failed     int
	Duration   time.Duration
	Failures   []errors.FileError
}

// New creates a pipeline. A nil protector gets the configured external
// tool; tests inject a fake. A nil logger discards output.
func New(cfg *config.Config, logger logging.Logger, protector protect.Protector) *Pipeline {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if protector == nil {
		protector = protect.NewTool(protect.Options{
			Command:      cfg.Protect.Command,
			StagingDir:   cfg.Protect.StagingDir,
			RememberDays: cfg.Protect.RememberDays,
			Title:        cfg.Protect.Title,
			Instructions: cfg.Protect.Instructions,
			Button:       cfg.Protect.Button,
		}, logger)
	}
	return &Pipeline{
		cfg:       cfg,
		logger:    logger.WithComponent("pipeline"),
		renderer:  render.NewRenderer(),
		protector: protector,
		failures:  errors.NewErrorCollector(),
	}
}

// task is one file handed to a worker. Secrets are resolved serially in
// the dispatch loop before workers start, so the registry has a single
// writer.
type task struct {
	file   scanner.SourceFile
	digest string
	name   string
	secret string
}

// result is one worker outcome, folded into the cache by the collector.
type result struct {
	file   scanner.SourceFile
	digest string
	err    error
}

// Run executes one build. Per-file protection failures are reported in
// the summary and retried next run; I/O errors abort the run after the
// cache and registry state accumulated so far has been persisted.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	p.failures.Clear()

	if err := os.MkdirAll(p.cfg.Paths.Output, 0o755); err != nil {
		return nil, errors.NewIOError(p.cfg.Paths.Output, "creating output directory", err)
	}

	lock, err := AcquireLock(p.cfg.Paths.Output)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if err := CopyAssets(p.cfg.Paths.Assets, p.cfg.Paths.Output); err != nil {
		return nil, err
	}

	mdStyle, err := readOptional(p.cfg.MarkdownStylePath())
	if err != nil {
		return nil, err
	}
	indexStyle, err := readOptional(p.cfg.IndexStylePath())
	if err != nil {
		return nil, err
	}

	cache, err := LoadCache(p.cfg.Paths.CacheFile)
	if err != nil {
		return nil, err
	}
	registry, err := secrets.Load(p.cfg.Paths.RegistryFile)
	if err != nil {
		return nil, err
	}
	registry.SetSecretLength(p.cfg.Protect.SecretLength)

	files, err := scanner.Scan(p.cfg.Paths.Source)
	if err != nil {
		return nil, err
	}
	p.logger.Info(ctx, "discovered source files", "count", len(files))

	summary := &Summary{Discovered: len(files)}
	dispatchErr := p.dispatch(ctx, files, cache, registry, mdStyle, summary)

	// Persist whatever state is valid even when the run is aborting:
	// successfully processed files must not be rebuilt next time, and
	// freshly created secrets must not be lost.
	if err := cache.Save(p.cfg.Paths.CacheFile); err != nil {
		return nil, err
	}
	if err := registry.Save(p.cfg.Paths.RegistryFile); err != nil {
		return nil, err
	}
	if dispatchErr != nil {
		return nil, dispatchErr
	}

	protected, public := manifest.FromFiles(files)
	err = manifest.Write(filepath.Join(p.cfg.Paths.Output, "index.html"), manifest.Data{
		Title:     p.cfg.Site.Title,
		Subtitle:  p.cfg.Site.Subtitle,
		Style:     template.CSS(indexStyle),
		Protected: protected,
		Public:    public,
	})
	if err != nil {
		return nil, err
	}

	if err := protect.CleanupStaging(p.cfg.Protect.StagingDir); err != nil {
		p.logger.Warn(ctx, err, "staging cleanup failed")
	}

	summary.Duration = time.Since(start)
	summary.Failures = p.failures.Errors()
	p.logger.Info(ctx, "build finished",
		"discovered", summary.Discovered,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration.String(),
	)
	return summary, nil
}

// dispatch decides skip-or-process for every file in discovery order and
// fans the work out to a bounded worker pool. Cache mutations happen only
// here, folded in from worker results, so the persisted mapping has a
// single writer even when protection calls run concurrently.
func (p *Pipeline) dispatch(
	ctx context.Context,
	files []scanner.SourceFile,
	cache *Cache,
	registry *secrets.Registry,
	mdStyle string,
	summary *Summary,
) error {
	tasks := make(chan task, len(files))
	results := make(chan result, len(files))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, sf := range files {
		digest, err := FingerprintFile(sf.Path)
		if err != nil {
			return err
		}

		if !p.cfg.Build.Force && !cache.NeedsRebuild(sf.Path, digest) {
			if _, statErr := os.Stat(filepath.Join(p.cfg.Paths.Output, sf.OutputRel)); statErr == nil {
				summary.Skipped++
				p.logger.Debug(ctx, "skipping unchanged file", "path", sf.Path)
				continue
			}
		}

		t := task{file: sf, digest: digest}
		if sf.Listed() {
			t.name = scanner.DisplayName(sf)
		}
		if sf.Listed() && sf.Visibility == scanner.VisibilityProtected {
			secret, err := registry.GetOrCreate(sf.Path, t.name)
			if err != nil {
				return err
			}
			t.secret = secret
		}
		tasks <- t
	}
	close(tasks)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Build.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if err := ctx.Err(); err != nil {
					results <- result{file: t.file, digest: t.digest, err: err}
					continue
				}
				results <- result{file: t.file, digest: t.digest, err: p.process(ctx, t, mdStyle)}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var fatal error
	for res := range results {
		switch {
		case res.err == nil:
			cache.Update(res.file.Path, res.digest)
			summary.Processed++
		case errors.IsRecoverable(res.err):
			// Cache entry untouched: the file is retried next run.
			summary.Failed++
			p.failures.Add(res.file.Path, "protect", res.err.Error())
			p.logger.Warn(ctx, res.err, "file processing failed", "path", res.file.Path)
		default:
			if fatal == nil {
				fatal = res.err
				cancel()
			}
		}
	}
	return fatal
}

// process produces the output artifact for one file.
func (p *Pipeline) process(ctx context.Context, t task, mdStyle string) error {
	outPath := filepath.Join(p.cfg.Paths.Output, t.file.OutputRel)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return errors.NewIOError(outPath, "creating output directory", err)
	}

	switch t.file.Kind {
	case scanner.KindMarkdown:
		return p.processMarkdown(ctx, t, outPath, mdStyle)
	case scanner.KindHTML:
		if t.file.Visibility == scanner.VisibilityPublic {
			return CopyFile(t.file.Path, outPath)
		}
		return p.protector.Protect(ctx, t.file.Path, outPath, t.secret)
	default:
		// Opaque files are copied verbatim regardless of visibility.
		return CopyFile(t.file.Path, outPath)
	}
}

func (p *Pipeline) processMarkdown(ctx context.Context, t task, outPath, mdStyle string) error {
	src, err := os.ReadFile(t.file.Path)
	if err != nil {
		return errors.NewIOError(t.file.Path, "reading markdown source", err)
	}

	page, err := p.renderer.RenderPage(t.name, mdStyle, src)
	if err != nil {
		return err
	}
	if err := render.ValidateDocument([]byte(page)); err != nil {
		return errors.NewRenderError(t.file.Path, "rendered page failed validation", err)
	}

	if t.file.Visibility == scanner.VisibilityPublic {
		if err := os.WriteFile(outPath, []byte(page), 0o644); err != nil {
			return errors.NewIOError(outPath, "writing rendered page", err)
		}
		return nil
	}

	staging := stagingPath(outPath)
	if err := os.WriteFile(staging, []byte(page), 0o644); err != nil {
		return errors.NewIOError(staging, "writing staging page", err)
	}
	defer os.Remove(staging)

	return p.protector.Protect(ctx, staging, outPath, t.secret)
}

// stagingPath maps an output path to its transient pre-protection
// sibling, e.g. notes/a.html -> notes/a.temp.html.
func stagingPath(outPath string) string {
	return strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".temp.html"
}
