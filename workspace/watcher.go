package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
)

var watchLog = commonlog.GetLogger("sapling.watch")

// Watcher reparses workspace files when they change on disk. Bursts of
// events for the same file are collapsed into one reparse once the file
// has been quiet for the debounce interval.
type Watcher struct {
	workspace *Workspace
	watcher   *fsnotify.Watcher
	match     func(path string) bool
	exclude   func(path string) bool
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]pendingChange

	stopCh   chan struct{}
	stopOnce sync.Once

	// OnUpdate and OnRemove are called from the watcher goroutine after a
	// file was reparsed or dropped.
	OnUpdate func(doc *Document)
	OnRemove func(path string)
}

type pendingChange struct {
	at      time.Time
	removed bool
}

type WatcherConfig struct {
	// Match selects the files to parse.
	Match func(path string) bool
	// Exclude skips directories, and the files below them, when it returns true.
	Exclude  func(path string) bool
	Debounce time.Duration
}

func NewWatcher(w *Workspace, cfg WatcherConfig) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	match := cfg.Match
	if match == nil {
		match = func(string) bool { return true }
	}
	exclude := cfg.Exclude
	if exclude == nil {
		exclude = func(string) bool { return false }
	}
	return &Watcher{
		workspace: w,
		watcher:   fsWatcher,
		match:     match,
		exclude:   exclude,
		debounce:  debounce,
		pending:   make(map[string]pendingChange),
		stopCh:    make(chan struct{}),
	}, nil
}

// Watch watches dirs recursively until ctx is done or Stop is called.
func (w *Watcher) Watch(ctx context.Context, dirs []string) error {
	for _, dir := range dirs {
		if err := w.addDirRecursive(dir); err != nil {
			watchLog.Warningf("failed to watch %s: %v", dir, err)
		}
	}

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			watchLog.Errorf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

func (w *Watcher) addDirRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.exclude(path) {
			return filepath.SkipDir
		}
		watchLog.Debugf("watching %s", path)
		return w.watcher.Add(path)
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.exclude(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirRecursive(event.Name); err != nil {
				watchLog.Warningf("failed to watch %s: %v", event.Name, err)
			}
			return
		}
	}
	if !w.match(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		w.queue(event.Name, false)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.queue(event.Name, true)
	}
}

func (w *Watcher) queue(path string, removed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = pendingChange{at: time.Now(), removed: removed}
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	ready := make(map[string]bool)
	for path, change := range w.pending {
		if now.Sub(change.at) >= w.debounce {
			ready[path] = change.removed
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for path, removed := range ready {
		if removed {
			w.workspace.RemoveFile(path)
			watchLog.Infof("removed %s", path)
			if w.OnRemove != nil {
				w.OnRemove(path)
			}
			continue
		}
		doc, err := w.workspace.ScanFile(path)
		if err != nil {
			watchLog.Errorf("%v", err)
			continue
		}
		watchLog.Infof("reparsed %s v%d (%d errors)", path, doc.Version, len(doc.Tree.Errors()))
		if w.OnUpdate != nil {
			w.OnUpdate(doc)
		}
	}
}
