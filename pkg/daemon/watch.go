package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mscrnt/thermalctl/pkg/logger"
)

// debounce collapses the burst of events an editor produces on save
const debounce = 250 * time.Millisecond

// watcher reports changes to one file. It watches the parent directory so
// that atomic replace-by-rename saves are seen too.
type watcher struct {
	fs   *fsnotify.Watcher
	file string
	log  *logger.Logger
}

func newWatcher(path string, log *logger.Logger) (*watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &watcher{fs: fs, file: abs, log: log}, nil
}

func (w *watcher) Close() error {
	return w.fs.Close()
}

// run calls changed after each settled burst of writes to the file until
// ctx is done or the watcher is closed
func (w *watcher) run(ctx context.Context, changed func()) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.file {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debugf("%s: %s", ev.Op, ev.Name)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warnf("file watcher: %v", err)
		}
	}
}
