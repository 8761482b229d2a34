package symbols

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/babelhq/babel/internal/debug"
)

// Watcher re-indexes files as they change on disk. Edits are debounced so a
// save-all or a branch switch costs one update, not hundreds.
type Watcher struct {
	fw   *fsnotify.Watcher
	done chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	changed map[string]bool
}

// Watch observes the index root. fn receives the batch of changed paths on
// the watcher goroutine, debounce after the last event settles. Directories
// created while watching are picked up automatically.
func (ix *Index) Watch(debounce time.Duration, fn func(changed []string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("symbols: create watcher: %w", err)
	}

	// fsnotify has no recursive mode; register every directory up front.
	err = filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return walkErr
		}
		name := d.Name()
		if path != ix.root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("symbols: watch %s: %w", ix.root, err)
	}

	w := &Watcher{fw: fw, done: make(chan struct{}), changed: map[string]bool{}}
	go w.loop(ix, debounce, fn)
	return w, nil
}

func (w *Watcher) loop(ix *Index, debounce time.Duration, fn func(changed []string)) {
	fire := func() {
		w.mu.Lock()
		batch := make([]string, 0, len(w.changed))
		for path := range w.changed {
			batch = append(batch, path)
		}
		w.changed = map[string]bool{}
		w.mu.Unlock()
		if len(batch) > 0 {
			fn(batch)
		}
	}

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				// A new directory needs its own watch.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.fw.Add(event.Name)
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			rel, ok := ix.relative(event.Name)
			if !ok {
				continue
			}
			if _, supported := ix.reg.ForPath(rel); !supported {
				continue
			}
			w.mu.Lock()
			w.changed[rel] = true
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(debounce, fire)
			w.mu.Unlock()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			debug.Logf("symbols: watcher error: %v\n", err)
		}
	}
}

// Close stops watching and cancels any pending callback.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fw.Close()
}
