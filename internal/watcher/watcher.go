package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ghbackup/pkg/logger"
	"ghbackup/pkg/models"
)

// debounceWindow collapses event bursts for the same path (editors and
// copies fire several writes in quick succession) into one event.
const debounceWindow = 500 * time.Millisecond

// Watcher monitors a source tree recursively and emits file events used
// by watch-mode backups to decide when to re-run the pipeline.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	changes   chan models.FileEvent
	errors    chan error
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	watchedDirs map[string]bool

	debounceMu sync.Mutex
	debouncer  map[string]*time.Timer
}

func NewWatcher(log *logger.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		fsWatcher:   fsWatcher,
		changes:     make(chan models.FileEvent),
		errors:      make(chan error, 10),
		log:         log.WithField("component", "watcher"),
		ctx:         ctx,
		cancel:      cancel,
		watchedDirs: make(map[string]bool),
		debouncer:   make(map[string]*time.Timer),
	}, nil
}

// AddWatch registers path and every directory below it.
func (w *Watcher) AddWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return filepath.Walk(path, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := w.fsWatcher.Add(walkPath); err != nil {
				return err
			}
			w.watchedDirs[walkPath] = true
			w.log.Debugf("watching directory: %s", walkPath)
		}
		return nil
	})
}

func (w *Watcher) Start() {
	go w.handleEvents()
}

func (w *Watcher) Changes() <-chan models.FileEvent {
	return w.changes
}

func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) Close() {
	w.cancel()
	w.fsWatcher.Close()
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.processEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.errors <- err
		}
	}
}

func (w *Watcher) processEvent(event fsnotify.Event) {
	// New directories must be added to the watch before their contents
	// start producing events.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.AddWatch(event.Name); err != nil {
				w.errors <- err
			}
		}
	}

	w.debouncedSend(event.Name, func() {
		var operation string
		switch {
		case event.Op&fsnotify.Create == fsnotify.Create:
			operation = "CREATE"
		case event.Op&fsnotify.Write == fsnotify.Write:
			operation = "MODIFY"
		case event.Op&fsnotify.Remove == fsnotify.Remove:
			operation = "DELETE"
		default:
			return
		}

		select {
		case w.changes <- models.FileEvent{
			Path:      event.Name,
			Operation: operation,
			Timestamp: time.Now(),
		}:
		case <-w.ctx.Done():
		}
	})
}

// debouncedSend delays fn until the path has been quiet for the debounce
// window; repeated events reset the timer so only the last one fires.
func (w *Watcher) debouncedSend(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debouncer[path]; exists {
		timer.Stop()
	}
	w.debouncer[path] = time.AfterFunc(debounceWindow, func() {
		fn()
		w.debounceMu.Lock()
		delete(w.debouncer, path)
		w.debounceMu.Unlock()
	})
}
