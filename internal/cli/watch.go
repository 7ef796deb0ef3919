package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches the bursts of events editors produce on save.
const DefaultDebounce = 300 * time.Millisecond

// Watch runs every cell of the notebook at path, then again each time the
// file is saved, until ctx is done. The directory is watched rather than
// the file because many editors save by replacing it.
func (a *App) Watch(ctx context.Context, path string, debounce time.Duration) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		return a.errorf("%v", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return a.errorf("watch: %v", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return a.errorf("watch %s: %v", filepath.Dir(abs), err)
	}

	run := func() {
		fmt.Fprintf(a.Stderr, "--- running %s\n", path)
		a.RunDocument(ctx, abs, RunOptions{})
	}
	run()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ExitOK

		case ev, ok := <-w.Events:
			if !ok {
				return ExitOK
			}
			if filepath.Clean(ev.Name) != abs || (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) {
				continue
			}
			a.logger().Debug("notebook changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return ExitOK
			}
			a.logger().Warn("watch error", zap.Error(err))

		case <-timer.C:
			run()
		}
	}
}
