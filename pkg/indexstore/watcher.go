package indexstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces bursts of filesystem events (index files
// are typically rsynced in groups) into a single reload.
const reloadDebounce = 2 * time.Second

// Watcher triggers a forced store reload when files under the indices
// directory change.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching the store's indices directory. The watcher
// runs until ctx is cancelled or Close is called.
func Watch(ctx context.Context, store *Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(store.indicesDir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		store:   store,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.run(ctx)

	slog.Info("watching indices directory", "dir", store.indicesDir)
	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(reloadDebounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("index watcher error", "error", err)

		case <-fire:
			timer = nil
			fire = nil
			slog.Info("indices directory changed, reloading")
			if _, err := w.store.Initialize(ctx, true); err != nil {
				slog.Error("index reload failed", "error", err)
			}
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
