// Package watcher provides debounced source tree watching for the
// builder's watch mode.
//
// Rapid editor save bursts are grouped together so one rebuild covers
// them all. New directories created while watching are picked up, and
// hidden files plus staging artifacts are filtered out before events
// reach handlers.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Y006/phd-site/internal/logging"
)

// ChangeEvent represents one file change after filtering.
type ChangeEvent struct {
	Path string
	Op   string
}

// FileFilter decides whether a path's events are of interest.
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of change events.
type ChangeHandler func(events []ChangeEvent) error

// NoHiddenFilter rejects hidden files and files inside hidden
// directories.
func NoHiddenFilter(path string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(segment, ".") && segment != "." && segment != ".." {
			return false
		}
	}
	return true
}

// NoStagingFilter rejects transient pre-protection staging files.
func NoStagingFilter(path string) bool {
	return !strings.HasSuffix(path, ".temp.html")
}

// FileWatcher watches directories and delivers debounced change batches
// to registered handlers.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	delay    time.Duration
	logger   logging.Logger
	mu       sync.RWMutex
	filters  []FileFilter
	handlers []ChangeHandler

	events chan ChangeEvent
}

// NewFileWatcher creates a watcher with the given debounce delay.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &FileWatcher{
		watcher: w,
		delay:   delay,
		logger:  logger.WithComponent("watcher"),
		events:  make(chan ChangeEvent, 128),
	}, nil
}

// AddFilter registers a file filter.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler registers a change handler.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches root and every directory beneath it.
func (fw *FileWatcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.watcher.Add(path)
		}
		return nil
	})
}

// Start runs the watch and dispatch loops until ctx is cancelled.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.watchLoop(ctx)
	go fw.dispatchLoop(ctx)
}

// Stop closes the underlying watcher.
func (fw *FileWatcher) Stop() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "watch error")
		}
	}
}

func (fw *FileWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !fw.accepted(event.Name) {
		return
	}

	// Newly created directories must be watched too.
	if event.Op.Has(fsnotify.Create) {
		if err := fw.AddRecursive(event.Name); err != nil {
			// The path may be a plain file or already gone; both are fine.
			fw.logger.Debug(ctx, "not watching created path", "path", event.Name)
		}
	}

	select {
	case fw.events <- ChangeEvent{Path: event.Name, Op: event.Op.String()}:
	default:
		fw.logger.Warn(ctx, nil, "dropping change event, queue full", "path", event.Name)
	}
}

func (fw *FileWatcher) accepted(path string) bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	for _, filter := range fw.filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

// dispatchLoop groups events that arrive within the debounce delay and
// hands each batch to the handlers.
func (fw *FileWatcher) dispatchLoop(ctx context.Context) {
	var pending []ChangeEvent
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-fw.events:
			pending = append(pending, event)
			if timer == nil {
				timer = time.NewTimer(fw.delay)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(fw.delay)
			}
			fire = timer.C
		case <-fire:
			batch := pending
			pending = nil
			fire = nil
			fw.deliver(ctx, batch)
		}
	}
}

func (fw *FileWatcher) deliver(ctx context.Context, batch []ChangeEvent) {
	if len(batch) == 0 {
		return
	}
	fw.mu.RLock()
	handlers := fw.handlers
	fw.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			fw.logger.Error(ctx, err, "change handler failed")
		}
	}
}
