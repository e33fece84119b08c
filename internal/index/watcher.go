package index

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce batches bursts of file events before reindexing.
const defaultDebounce = 500 * time.Millisecond

// Watcher monitors a project root and keeps its index current. Writes and
// creates reindex the file; removes and renames fall through to the same
// path, where the unconditional chunk delete cleans the file out of the
// index.
type Watcher struct {
	index    *Index
	watcher  *fsnotify.Watcher
	debounce time.Duration

	pendingMu sync.Mutex
	pending   map[string]struct{}

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher driving the given index.
func NewWatcher(idx *Index) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		index:    idx,
		watcher:  fsWatcher,
		debounce: defaultDebounce,
		pending:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching the project root recursively.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.index.Root()); err != nil {
		return err
	}

	go w.processEvents(ctx)

	return nil
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

// addRecursive adds path and all non-hidden subdirectories to the watch list.
func (w *Watcher) addRecursive(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}
		if !info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.index.Root(), p)
		if err == nil && rel != "." && hasHiddenSegment(rel) {
			return filepath.SkipDir
		}

		return w.watcher.Add(p)
	})
}

func hasHiddenSegment(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// processEvents collects file system events and flushes them on a debounce
// tick.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleEvent queues a single fsnotify event for the next flush.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.index.Root(), event.Name)
	if err != nil || hasHiddenSegment(rel) {
		return
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Watch newly created directories
			if event.Op&fsnotify.Create != 0 {
				if err := w.addRecursive(event.Name); err != nil {
					log.Printf("failed to watch new directory %s: %v", event.Name, err)
				}
			}
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = struct{}{}
	w.pendingMu.Unlock()
}

// flushPending reindexes every path touched since the last tick. Removed
// files go through the same call; indexing a missing file reduces to
// deleting its chunks.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	for _, p := range paths {
		if err := w.index.IndexFile(ctx, p); err != nil {
			log.Printf("reindex %s: %v", p, err)
		}
	}
}
