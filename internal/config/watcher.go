package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadHandler is called with the freshly loaded config whenever the
// watched file changes and parses cleanly.
type ReloadHandler func(cfg *Config)

// Watcher reloads the config file on change. Only a subset of settings
// can take effect at runtime (currently the logging level); the handler
// decides what to apply.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handler  ReloadHandler
	debounce time.Duration

	mu      sync.Mutex
	pending *time.Timer
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
}

// Watch starts watching the given config file. Stop must be called to
// release the underlying watcher.
func Watch(path string, handler ReloadHandler) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file itself: editors replace
	// files on save, which drops the watch on some platforms.
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		watcher:  fsWatcher,
		handler:  handler,
		debounce: 250 * time.Millisecond,
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

func (w *Watcher) Stop() {
	w.stop.Do(func() {
		close(w.done)
		w.watcher.Close()
		w.mu.Lock()
		if w.pending != nil {
			w.pending.Stop()
		}
		w.mu.Unlock()
	})
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

// scheduleReload coalesces bursts of write events into a single reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	// The debounce timer may have fired just as Stop cancelled it.
	select {
	case <-w.done:
		return
	default:
	}

	cfg, err := LoadFromFile(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("Ignoring config change that failed to load")
		return
	}

	log.Info().Str("path", w.path).Msg("Config file reloaded")
	w.handler(cfg)
}
