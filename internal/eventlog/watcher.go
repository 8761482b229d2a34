package eventlog

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/babelhq/babel/internal/debug"
	"github.com/babelhq/babel/internal/types"
)

// Watcher fires a callback when a journal changes on disk. A burst of writes
// (a git merge, an editor save, a rebase) collapses into one callback per
// debounce window. The usual callback is a Sync followed by a graph rebuild.
type Watcher struct {
	fw   *fsnotify.Watcher
	done chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// Watch observes both journal directories. fn runs on the watcher goroutine,
// debounce milliseconds after the last change settles.
func (l *Log) Watch(debounce time.Duration, fn func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("eventlog: create watcher: %w", err)
	}

	// Watch the directories, not the files: git replaces journals wholesale
	// during merges and a file watch dies with the old inode.
	for _, scope := range []types.Scope{types.ScopeShared, types.ScopeLocal} {
		dir := filepath.Dir(l.JournalPath(scope))
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("eventlog: watch %s: %w", dir, err)
		}
	}

	w := &Watcher{fw: fw, done: make(chan struct{})}
	go w.loop(debounce, fn)
	return w, nil
}

func (w *Watcher) loop(debounce time.Duration, fn func()) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != journalName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(debounce, fn)
			w.mu.Unlock()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			debug.Logf("eventlog: watcher error: %v\n", err)
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
