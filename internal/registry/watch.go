package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pawcontrol/pawsync/internal/errors"
)

// reloadDebounce collapses the burst of events editors emit for one save.
const reloadDebounce = 100 * time.Millisecond

// ReloadFunc receives the tracked ids after a reload, or the load error.
type ReloadFunc func(ids []string, err error)

// Watch reloads the registry whenever its file is written or replaced,
// until ctx is done. The parent directory is watched so atomic
// rename-over saves are seen.
func (r *Registry) Watch(ctx context.Context, onReload ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewRegistryError("create watcher", err).WithPath(r.path)
	}
	target := filepath.Clean(r.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return errors.NewRegistryError("watch registry", err).WithPath(r.path)
	}

	go r.watchLoop(ctx, watcher, target, onReload)
	return nil
}

func (r *Registry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string, onReload ReloadFunc) {
	defer func() { _ = watcher.Close() }()

	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(reloadDebounce)

		case <-debounce.C:
			err := r.Load()
			if err != nil {
				r.logger.Warn("registry reload failed", "error", err)
			}
			if onReload != nil {
				onReload(r.DogIDs(), err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("registry watcher error", "error", err)
		}
	}
}
