package project

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// WorkspaceEventType classifies a watched-file change.
type WorkspaceEventType int

const (
	WorkspaceFileCreated WorkspaceEventType = iota
	WorkspaceFileChanged
	WorkspaceFileRemoved
)

// WorkspaceWatcher observes the workspace root for changes to project
// files, script files, and project.assets.json, and calls the matching
// Graph mutator for each — grounded on the teacher's
// indexing.FileWatcher + eventDebouncer (fsnotify watch loop feeding a
// single reset-on-event timer).
type WorkspaceWatcher struct {
	watcher *fsnotify.Watcher
	graph   *Graph
	debounce time.Duration

	mu     sync.Mutex
	events map[string]WorkspaceEventType
	timer  *time.Timer

	// OnChanged is invoked once per debounced batch of workspace-file
	// changes, with the changed file paths, after Graph has been
	// updated. This is the CheckOrchestrator's hook for the
	// "workspace-file change" handler (spec.md §4.5): invalidate every
	// open file.
	OnChanged func(changedFiles []string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkspaceWatcher creates a watcher for graph using fsnotify,
// batching events within debounce before applying them.
func NewWorkspaceWatcher(graph *Graph, debounce time.Duration) (*WorkspaceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkspaceWatcher{
		watcher:  w,
		graph:    graph,
		debounce: debounce,
		events:   make(map[string]WorkspaceEventType),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins watching root and all its subdirectories.
func (w *WorkspaceWatcher) Start(root string) error {
	if err := w.addWatches(root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop shuts down the watcher and waits for its goroutine to exit.
func (w *WorkspaceWatcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *WorkspaceWatcher) addWatches(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *WorkspaceWatcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isWatchedPath(ev.Name) {
				continue
			}
			w.schedule(ev.Name, classify(ev.Op))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("workspace watcher error: %v", err)
		}
	}
}

func classify(op fsnotify.Op) WorkspaceEventType {
	switch {
	case op&fsnotify.Remove != 0 || op&fsnotify.Rename != 0:
		return WorkspaceFileRemoved
	case op&fsnotify.Create != 0:
		return WorkspaceFileCreated
	default:
		return WorkspaceFileChanged
	}
}

func isWatchedPath(path string) bool {
	for _, pattern := range WatchedFilePatterns {
		if matched, _ := doublestar.Match(pattern, filepath.Base(path)); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
	}
	return false
}

// schedule records the latest event for path and (re)arms the debounce
// timer, matching the teacher's eventDebouncer: the timer is always
// stopped and restarted rather than allowed to coalesce across resets.
func (w *WorkspaceWatcher) schedule(path string, ev WorkspaceEventType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events[path] = ev
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *WorkspaceWatcher) flush() {
	w.mu.Lock()
	events := w.events
	w.events = make(map[string]WorkspaceEventType)
	w.mu.Unlock()

	if len(events) == 0 {
		return
	}

	var changed []string
	for path, ev := range events {
		changed = append(changed, path)
		switch {
		case strings.HasSuffix(path, "project.assets.json"):
			if err := w.graph.UpdateAssetsJson(path); err != nil {
				log.Printf("updateAssetsJson(%s): %v", path, err)
			}
		case strings.HasSuffix(path, ".fsx"):
			// Scripts derive Options from live buffer text via the
			// Analyzer (AddScriptFile), not from a manifest on disk, and
			// are not re-derived here. The watcher's only job here is
			// to surface the change so open documents get invalidated.
		case ev == WorkspaceFileRemoved:
			w.graph.DeleteProjectFile(path)
		default:
			if err := w.graph.PutProjectFile(path); err != nil {
				log.Printf("putProjectFile(%s): %v", path, err)
			}
		}
	}

	if w.OnChanged != nil {
		w.OnChanged(changed)
	}
}
