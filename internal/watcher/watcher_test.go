package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoHiddenFilter(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"plain file", "src/notes.md", true},
		{"hidden file", "src/.build_cache", false},
		{"hidden directory", "src/.git/config", false},
		{"dot segment", "./src/notes.md", true},
		{"parent segment", "../src/notes.md", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NoHiddenFilter(tt.path))
		})
	}
}

func TestNoStagingFilter(t *testing.T) {
	assert.True(t, NoStagingFilter("src/notes.md"))
	assert.True(t, NoStagingFilter("docs/page.html"))
	assert.False(t, NoStagingFilter("docs/page.temp.html"))
}

func TestWatcherDeliversDebouncedBatch(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(NoHiddenFilter)
	fw.AddFilter(NoStagingFilter)

	batches := make(chan []ChangeEvent, 4)
	fw.AddHandler(func(events []ChangeEvent) error {
		batches <- events
		return nil
	})

	require.NoError(t, fw.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw.Start(ctx)

	// A burst of writes should collapse into one delivery.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("two"), 0o644))

	select {
	case batch := <-batches:
		require.NotEmpty(t, batch)
		for _, ev := range batch {
			assert.NotContains(t, ev.Path, ".temp.html")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
}

func TestWatcherIgnoresFilteredFiles(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(NoHiddenFilter)
	fw.AddFilter(NoStagingFilter)

	batches := make(chan []ChangeEvent, 4)
	fw.AddHandler(func(events []ChangeEvent) error {
		batches <- events
		return nil
	})

	require.NoError(t, fw.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.temp.html"), []byte("x"), 0o644))

	select {
	case batch := <-batches:
		t.Fatalf("expected no delivery, got %v", batch)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	batches := make(chan []ChangeEvent, 4)
	fw.AddHandler(func(events []ChangeEvent) error {
		batches <- events
		return nil
	})

	require.NoError(t, fw.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw.Start(ctx)

	sub := filepath.Join(dir, "notes")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Drain the batch for the directory creation itself.
	select {
	case <-batches:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for directory event")
	}

	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.md"), []byte("x"), 0o644))

	select {
	case batch := <-batches:
		found := false
		for _, ev := range batch {
			if filepath.Base(ev.Path) == "inner.md" {
				found = true
			}
		}
		assert.True(t, found, "expected event for file in new directory")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event from new directory")
	}
}
