package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultDebounce is the quiet period before a batch of changes fires.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a file watcher.
type Options struct {
	Root       string        // Project root, watched recursively
	Extensions []string      // Extensions to monitor, e.g. []string{".py"}
	Ignore     []string      // Glob patterns relative to Root; matching directories are not watched
	Debounce   time.Duration // Zero means DefaultDebounce
}

// fileWatcher implements FileWatcher interface.
type fileWatcher struct {
	watcher       *fsnotify.Watcher
	root          string
	extensions    map[string]bool
	ignore        []glob.Glob
	debounceTime  time.Duration
	callback      func(files []string)
	ctx           context.Context
	cancel        context.CancelFunc
	paused        bool
	pausedMu      sync.RWMutex
	accumulated   map[string]bool // Relative paths changed since the last callback
	accumulatedMu sync.Mutex
	debounceTimer *time.Timer
	timerMu       sync.Mutex
	stopOnce      sync.Once
	doneCh        chan struct{} // Closed when the watch goroutine has finished
}

// NewFileWatcher creates a watcher for every directory below opts.Root that
// no ignore pattern excludes.
func NewFileWatcher(opts Options) (FileWatcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	fw := &fileWatcher{
		root:         root,
		extensions:   make(map[string]bool, len(opts.Extensions)),
		debounceTime: opts.Debounce,
		accumulated:  make(map[string]bool),
		doneCh:       make(chan struct{}),
	}
	if fw.debounceTime <= 0 {
		fw.debounceTime = DefaultDebounce
	}
	for _, ext := range opts.Extensions {
		fw.extensions[ext] = true
	}
	for _, pattern := range opts.Ignore {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		fw.ignore = append(fw.ignore, g)
		// "**/migrations/**" should also match "migrations" at the root
		if trimmed := strings.TrimPrefix(pattern, "**/"); trimmed != pattern {
			if g, err := glob.Compile(trimmed, '/'); err == nil {
				fw.ignore = append(fw.ignore, g)
			}
		}
	}

	fw.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fw.addDirectoriesRecursively(root); err != nil {
		fw.watcher.Close()
		return nil, err
	}

	return fw, nil
}

// Start begins watching for file changes.
func (fw *fileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	if callback == nil {
		return nil
	}

	fw.callback = callback
	fw.ctx, fw.cancel = context.WithCancel(ctx)

	go fw.watch()
	return nil
}

// Stop stops the file watcher.
func (fw *fileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		if fw.cancel != nil {
			fw.cancel()
			<-fw.doneCh
		} else {
			// Never started
			close(fw.doneCh)
		}
		err = fw.watcher.Close()
	})
	return err
}

// Pause stops firing callbacks but continues accumulating events.
func (fw *fileWatcher) Pause() {
	fw.pausedMu.Lock()
	defer fw.pausedMu.Unlock()
	fw.paused = true
}

// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
func (fw *fileWatcher) Resume() {
	fw.pausedMu.Lock()
	wasPaused := fw.paused
	fw.paused = false
	fw.pausedMu.Unlock()

	if !wasPaused {
		return
	}
	if files := fw.drain(); len(files) > 0 && fw.callback != nil {
		fw.callback(files)
	}
}

// watch is the main event loop.
func (fw *fileWatcher) watch() {
	defer close(fw.doneCh)

	fireCh := make(chan struct{}, 1)

	for {
		select {
		case <-fw.ctx.Done():
			fw.stopDebounceTimer()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// New directories join the watch unless ignored
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.addDirectoriesRecursively(event.Name); err != nil {
						slog.Warn("failed to watch new directory", "dir", event.Name, "error", err)
					}
				}
			}

			rel, ok := fw.relevant(event)
			if !ok {
				continue
			}

			fw.accumulatedMu.Lock()
			fw.accumulated[rel] = true
			fw.accumulatedMu.Unlock()

			fw.resetDebounceTimer(fireCh)

		case <-fireCh:
			fw.handleDebounceExpired()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}

// handleDebounceExpired fires the callback unless paused; paused watchers
// keep accumulating until Resume.
func (fw *fileWatcher) handleDebounceExpired() {
	fw.pausedMu.RLock()
	paused := fw.paused
	fw.pausedMu.RUnlock()
	if paused {
		return
	}

	if files := fw.drain(); len(files) > 0 && fw.callback != nil {
		fw.callback(files)
	}
}

// drain returns the accumulated paths sorted and clears them.
func (fw *fileWatcher) drain() []string {
	fw.accumulatedMu.Lock()
	defer fw.accumulatedMu.Unlock()

	if len(fw.accumulated) == 0 {
		return nil
	}
	files := make([]string, 0, len(fw.accumulated))
	for file := range fw.accumulated {
		files = append(files, file)
	}
	fw.accumulated = make(map[string]bool)
	sort.Strings(files)
	return files
}

// resetDebounceTimer resets the debounce timer, properly stopping the old one.
func (fw *fileWatcher) resetDebounceTimer(fireCh chan struct{}) {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}

	fw.debounceTimer = time.AfterFunc(fw.debounceTime, func() {
		select {
		case fireCh <- struct{}{}:
		default:
		}
	})
}

// stopDebounceTimer stops the debounce timer if it exists.
func (fw *fileWatcher) stopDebounceTimer() {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
		fw.debounceTimer = nil
	}
}

// relevant reports whether an event concerns a monitored file and returns
// its path relative to the root. Renames surface as Create plus Rename.
func (fw *fileWatcher) relevant(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	if !fw.extensions[filepath.Ext(event.Name)] {
		return "", false
	}

	rel, err := filepath.Rel(fw.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if fw.ignored(rel) {
		return "", false
	}
	return rel, true
}

func (fw *fileWatcher) ignored(rel string) bool {
	for _, g := range fw.ignore {
		// "venv/**" also matches the directory "venv" itself
		if g.Match(rel) || g.Match(rel+"/**") {
			return true
		}
	}
	return false
}

// addDirectoriesRecursively adds every non-ignored directory in the tree.
func (fw *fileWatcher) addDirectoriesRecursively(start string) error {
	return filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == start {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			slog.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		if rel, err := filepath.Rel(fw.root, path); err == nil && rel != "." {
			if fw.ignored(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}

		if err := fw.watcher.Add(path); err != nil {
			slog.Warn("failed to watch directory", "dir", path, "error", err)
		}
		return nil
	})
}
