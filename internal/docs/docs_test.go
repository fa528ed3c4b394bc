// ABOUTME: Tests for the directory document store and its cache invalidation.
// ABOUTME: Uses t.TempDir fixtures and a live fsnotify watcher.

package docs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDirListsOnlyTextFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "bravo")
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "notes.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))

	store := NewDir(dir, nil)

	names, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)

	texts, err := store.ReadAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo"}, texts)
}

func TestDirMissingDirectoryIsEmpty(t *testing.T) {
	store := NewDir(filepath.Join(t.TempDir(), "does-not-exist"), nil)

	names, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDirCachesUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "v1")
	store := NewDir(dir, nil)

	texts, err := store.ReadAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, texts)

	writeFile(t, dir, "a.txt", "v2")
	texts, _ = store.ReadAllDocuments(context.Background())
	assert.Equal(t, []string{"v1"}, texts, "cache should serve stale content until invalidated")
	assert.Equal(t, 1, store.loads)

	store.Invalidate()
	texts, _ = store.ReadAllDocuments(context.Background())
	assert.Equal(t, []string{"v2"}, texts)
	assert.Equal(t, 2, store.loads)
}

func TestDirCancelledContext(t *testing.T) {
	store := NewDir(t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ListDocuments(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirWatchInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "first")
	store := NewDir(dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	names, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, names)

	// The watcher registers asynchronously, so keep touching the file until the
	// new document shows up.
	require.Eventually(t, func() bool {
		writeFile(t, dir, "b.txt", "second")
		names, err := store.ListDocuments(context.Background())
		return err == nil && len(names) == 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestDirWatchMissingDirectoryWaitsForCancel(t *testing.T) {
	store := NewDir(filepath.Join(t.TempDir(), "gone"), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
