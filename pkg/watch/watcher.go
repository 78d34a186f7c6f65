// Package watch re-runs a check whenever the watched log directory changes,
// and on a fixed interval so a log that stops growing is still noticed.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/supporttools/logcheck/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

// Filter decides whether an event on path should trigger a check.
type Filter func(path string) bool

// FileWatcher watches directories and emits debounced change signals.
type FileWatcher struct {
	dirs             []string
	filter           Filter
	debounceInterval time.Duration
	watcher          *fsnotify.Watcher
	changeCh         chan struct{}
	mu               sync.Mutex
	running          bool
	stopCh           chan struct{}
}

// NewFileWatcher creates a watcher over dirs. A nil filter accepts every event.
func NewFileWatcher(dirs []string, filter Filter, debounceInterval time.Duration) (*FileWatcher, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no directories to watch")
	}
	if debounceInterval <= 0 {
		debounceInterval = defaultDebounce
	}
	if filter == nil {
		filter = func(string) bool { return true }
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &FileWatcher{
		dirs:             dirs,
		filter:           filter,
		debounceInterval: debounceInterval,
		watcher:          watcher,
		changeCh:         make(chan struct{}, 1),
		stopCh:           make(chan struct{}),
	}, nil
}

// Start begins watching. The returned channel receives one value per burst
// of matching events.
func (fw *FileWatcher) Start(ctx context.Context) (<-chan struct{}, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return nil, fmt.Errorf("watcher already running")
	}

	// Directories, not files: rotation replaces the file.
	for _, dir := range fw.dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	fw.running = true
	go fw.processEvents(ctx)

	return fw.changeCh, nil
}

// Stop stops watching. Safe to call more than once.
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		fw.watcher.Close()
		return
	}

	close(fw.stopCh)
	fw.watcher.Close()
	fw.running = false
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	log := logger.ForComponent("watch")
	var debounceTimer *time.Timer
	var timerCh <-chan time.Time

	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !fw.filter(filepath.Clean(event.Name)) {
				continue
			}

			log.WithField("file", event.Name).Debug("log change detected")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(fw.debounceInterval)
			timerCh = debounceTimer.C

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("file watcher error")

		case <-timerCh:
			select {
			case fw.changeCh <- struct{}{}:
			default:
				// a change is already pending
			}
			timerCh = nil
		}
	}
}
