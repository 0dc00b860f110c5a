package nova

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of filesystem events (an editor save can
// emit several) into a single dirty mark.
const watchDebounce = 500 * time.Millisecond

// Watch starts filesystem change detection on the component directory.
// Events only mark the registry dirty; the actual refresh still runs
// strictly between conversation cycles, so plugin-state mutation never
// overlaps an in-flight exchange. The loop controller uses Dirty to skip
// refreshes when nothing changed.
//
// Watch returns after starting a goroutine that runs until ctx is done.
func (r *Registry) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(r.dir); err != nil {
		w.Close()
		return err
	}

	r.mu.Lock()
	r.watching = true
	r.mu.Unlock()

	go func() {
		defer w.Close()
		defer func() {
			r.mu.Lock()
			r.watching = false
			r.mu.Unlock()
		}()

		var timer *time.Timer

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Chmod == fsnotify.Chmod {
					continue
				}
				name := event.Name
				if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
					continue
				}

				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					slog.Debug("component directory changed", "path", name)
					r.MarkDirty()
				})

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("component watcher error", "error", err)
			}
		}
	}()

	return nil
}
