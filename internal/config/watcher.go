package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads configuration when the config file changes on disk.
// Reloads are debounced since editors often emit several events per save.
type Watcher struct {
	loader   *Loader
	path     string
	onReload func(*Config)
	onError  func(error)

	watcher       *fsnotify.Watcher
	debounceTimer *time.Timer
	debounce      time.Duration

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewWatcher creates a watcher for the given config file. onReload is
// called with each successfully loaded and validated config; onError is
// called when a reload fails and the previous config stays in effect.
func NewWatcher(path string, onReload func(*Config), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		loader:   NewLoader().WithConfigFile(path),
		path:     path,
		onReload: onReload,
		onError:  onError,
		watcher:  fsw,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}

	// Watch the directory rather than the file itself: atomic saves
	// replace the inode and a file watch would go stale.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err == nil {
		err = NewValidator().Validate(cfg)
	}
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	close(w.done)
	w.mu.Unlock()
	return w.watcher.Close()
}
