// ABOUTME: Directory-backed store of plain-text documents used by document search.
// ABOUTME: Contents are cached and invalidated by an fsnotify watcher.

package docs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Extension is the suffix of files treated as documents.
const Extension = ".txt"

// Store provides the offline documents.
type Store interface {
	ListDocuments(ctx context.Context) ([]string, error)
	ReadAllDocuments(ctx context.Context) ([]string, error)
}

// Document is one loaded document.
type Document struct {
	Name string
	Text string
}

// Dir serves the *.txt files directly inside a directory. Subdirectories are
// ignored. A missing directory is treated as empty.
type Dir struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	cached []Document // nil means not loaded
	loads  int
}

// NewDir creates a Dir store rooted at path.
func NewDir(path string, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{
		path:   path,
		logger: logger.With("component", "docs", "path", path),
	}
}

// Path returns the directory served by the store.
func (d *Dir) Path() string {
	return d.path
}

// ListDocuments returns the document filenames in sorted order.
func (d *Dir) ListDocuments(ctx context.Context) ([]string, error) {
	all, err := d.Documents(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(all))
	for i, doc := range all {
		names[i] = doc.Name
	}
	return names, nil
}

// ReadAllDocuments returns the text of every document, ordered by filename.
func (d *Dir) ReadAllDocuments(ctx context.Context) ([]string, error) {
	all, err := d.Documents(ctx)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(all))
	for i, doc := range all {
		texts[i] = doc.Text
	}
	return texts, nil
}

// Documents returns every document, loading the directory if the cache is cold.
func (d *Dir) Documents(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached != nil {
		return d.cached, nil
	}

	loaded, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	d.cached = loaded
	d.loads++
	d.logger.Debug("documents loaded", "count", len(loaded))
	return loaded, nil
}

// Invalidate drops the cache; the next read reloads from disk.
func (d *Dir) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

func (d *Dir) load(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("documents directory not found, serving none")
			return []Document{}, nil
		}
		return nil, fmt.Errorf("reading documents directory: %w", err)
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !isDocument(entry.Name()) {
			continue
		}
		full := filepath.Join(d.path, entry.Name())
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("reading document %s: %w", entry.Name(), err)
		}
		docs = append(docs, Document{Name: entry.Name(), Text: string(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// Watch invalidates the cache whenever a document in the directory changes.
// It blocks until ctx is cancelled. If the directory cannot be watched the
// cache is simply never invalidated.
func (d *Dir) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating documents watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.path); err != nil {
		d.logger.Warn("documents directory not watched", "error", err)
		<-ctx.Done()
		return nil
	}
	d.logger.Info("watching documents directory")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isDocument(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			d.logger.Debug("document changed", "file", filepath.Base(event.Name), "op", event.Op.String())
			d.Invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("documents watcher error", "error", err)
		}
	}
}

func isDocument(name string) bool {
	return strings.HasSuffix(name, Extension)
}
