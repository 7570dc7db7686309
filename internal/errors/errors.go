package errors

import (
	"fmt"
	"sync"
	"time"
)

// FileError records a non-fatal per-file processing failure.
type FileError struct {
	Path      string
	Stage     string
	Message   string
	Timestamp time.Time
}

// Error implements the error interface.
func (fe *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", fe.Path, fe.Stage, fe.Message)
}

// ErrorCollector accumulates per-file failures across a run.
// It is safe for concurrent use by pipeline workers.
type ErrorCollector struct {
	mu     sync.RWMutex
	errors []FileError
}

// NewErrorCollector creates an empty collector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{}
}

// Add records a failure for a file.
func (ec *ErrorCollector) Add(path, stage, message string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.errors = append(ec.errors, FileError{
		Path:      path,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// Errors returns a copy of all collected failures.
func (ec *ErrorCollector) Errors() []FileError {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make([]FileError, len(ec.errors))
	copy(out, ec.errors)
	return out
}

// HasErrors reports whether any failures were collected.
func (ec *ErrorCollector) HasErrors() bool {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.errors) > 0
}

// Count returns the number of collected failures.
func (ec *ErrorCollector) Count() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.errors)
}

// ByPath returns the failures recorded for a specific file.
func (ec *ErrorCollector) ByPath(path string) []FileError {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	var out []FileError
	for _, fe := range ec.errors {
		if fe.Path == path {
			out = append(out, fe)
		}
	}
	return out
}

// Clear discards all collected failures.
func (ec *ErrorCollector) Clear() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.errors = ec.errors[:0]
}
