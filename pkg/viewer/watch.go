package viewer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 300 * time.Millisecond

// Watch reloads the geometry whenever its file changes, until ctx is done.
// The directory is watched rather than the file so that editors replacing
// the file by rename are seen. Reload failures are logged; the previous
// geometry stays active.
func (o *Orchestrator) Watch(ctx context.Context) error {
	path := o.GeometryPath()
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	o.logger.Debug("watching geometry", "path", abs)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("geometry watch", "error", err)
		case <-fire:
			fire = nil
			o.logger.Info("geometry changed, reloading", "path", path)
			if err := o.Reload(ctx); err != nil {
				o.logger.Error("reload failed, keeping previous geometry", "error", err)
			}
		}
	}
}
