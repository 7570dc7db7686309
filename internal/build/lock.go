package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/Y006/phd-site/internal/errors"
)

// LockFileName is the lock file created under the output root for the
// duration of a run. Exactly one build may run against a given output,
// cache, and registry at a time; concurrent runs would race on the
// staging directory and on final persistence.
const LockFileName = ".phd-site.lock"

// Lock is a held single-run lock.
type Lock struct {
	path string
}

// AcquireLock takes the build lock under dir, writing the holder's PID
// into the lock file. A lock left behind by a dead process is reclaimed.
func AcquireLock(dir string) (*Lock, error) {
	path := filepath.Join(dir, LockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			if err := f.Close(); err != nil {
				os.Remove(path)
				return nil, errors.NewIOError(path, "writing lock file", err)
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.NewIOError(path, "creating lock file", err)
		}

		if holderAlive(path) {
			return nil, errors.NewIOError(path,
				"another build is already running against this output directory", nil)
		}
		// Stale lock from a dead process: reclaim and retry once.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.NewIOError(path, "removing stale lock file", err)
		}
	}

	return nil, errors.NewIOError(path, "could not acquire build lock", nil)
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError(l.path, "removing lock file", err)
	}
	return nil
}

// holderAlive reports whether the process recorded in the lock file still
// exists. An unreadable or garbled lock file counts as dead.
func holderAlive(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
