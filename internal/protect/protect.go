// Package protect wraps the external page-protection tool.
//
// The tool takes a plain HTML file and a password and produces a
// password-gated HTML file. It ignores any requested destination and
// always drops its output under a fixed directory of its own choosing, so
// the wrapper relocates the produced file to the intended output path
// itself. Tool failures are recoverable per file: the caller logs them,
// skips the file, and leaves its cache entry untouched so the file is
// retried on the next run.
package protect

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Y006/phd-site/internal/errors"
	"github.com/Y006/phd-site/internal/logging"
)

// Protector protects an HTML file behind a secret and places the result
// at outputPath.
type Protector interface {
	Protect(ctx context.Context, inputPath, outputPath, secret string) error
}

// Options configures the external tool invocation.
type Options struct {
	// Command is the tool binary name or path.
	Command string
	// StagingDir is the fixed directory the tool drops its output in.
	StagingDir string
	// RememberDays is how long the browser remembers an entered secret.
	RememberDays int
	// Title, Instructions, and Button are the prompt page UI texts.
	Title        string
	Instructions string
	Button       string
}

// Tool invokes the protection tool as a blocking subprocess.
type Tool struct {
	opts   Options
	logger logging.Logger

	mu    sync.Mutex
	drops map[string]*sync.Mutex
}

// NewTool creates a Tool. A nil logger discards output.
func NewTool(opts Options, logger logging.Logger) *Tool {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Tool{
		opts:   opts,
		logger: logger.WithComponent("protect"),
		drops:  make(map[string]*sync.Mutex),
	}
}

// dropLock returns the lock serializing invocations whose drop file is
// base. The tool names its output after the input's base name only, so
// two concurrent invocations sharing a base name would overwrite each
// other's drop file before relocation.
func (t *Tool) dropLock(base string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.drops == nil {
		t.drops = make(map[string]*sync.Mutex)
	}
	lock, ok := t.drops[base]
	if !ok {
		lock = &sync.Mutex{}
		t.drops[base] = lock
	}
	return lock
}

var _ Protector = (*Tool)(nil)

// Protect runs the tool on inputPath and moves the produced file to
// outputPath. The returned error is a recoverable protect error unless
// relocation failed at the filesystem level.
func (t *Tool) Protect(ctx context.Context, inputPath, outputPath, secret string) error {
	args := []string{
		inputPath,
		"-p", secret,
		"--short",
		"--remember", strconv.Itoa(t.opts.RememberDays),
		"--template-title", t.opts.Title,
		"--template-instructions", t.opts.Instructions,
		"--template-button", t.opts.Button,
	}

	// Held until the drop file has been moved to its destination: inputs
	// sharing a base name share a drop path.
	base := filepath.Base(inputPath)
	lock := t.dropLock(base)
	lock.Lock()
	defer lock.Unlock()

	cmd := exec.CommandContext(ctx, t.opts.Command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.logger.Warn(ctx, err, "protection tool failed",
			"input", inputPath, "output", strings.TrimSpace(string(output)))
		return errors.NewProtectError(inputPath,
			fmt.Sprintf("protection tool failed: %s", strings.TrimSpace(string(output))), err)
	}

	// The tool drops its output under the staging directory under the
	// input's base name, regardless of any requested destination.
	produced := filepath.Join(t.opts.StagingDir, base)
	if _, err := os.Stat(produced); err != nil {
		return errors.NewProtectError(inputPath,
			fmt.Sprintf("protection tool produced no output at %s", produced), err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return errors.NewIOError(outputPath, "creating output directory", err)
	}
	if err := moveFile(produced, outputPath); err != nil {
		return errors.NewIOError(outputPath, "relocating protected output", err)
	}

	return nil
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// two live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyAndRemove(src, dst)
}

// copyAndRemove preserves the source file's mode, like a rename would.
func copyAndRemove(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// CleanupStaging removes leftover staging files from the tool's drop
// directory and removes the directory itself when it ends up empty.
func CleanupStaging(stagingDir string) error {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewIOError(stagingDir, "reading staging directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".temp.html") {
			if err := os.Remove(filepath.Join(stagingDir, entry.Name())); err != nil {
				return errors.NewIOError(entry.Name(), "removing staging file", err)
			}
		}
	}

	remaining, err := os.ReadDir(stagingDir)
	if err != nil {
		return errors.NewIOError(stagingDir, "re-reading staging directory", err)
	}
	if len(remaining) == 0 {
		return os.Remove(stagingDir)
	}
	return nil
}
