// Package watch reruns a function when Go sources change.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after a change before rerunning.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reruns Func after changes to the Go files of Dirs.
type Watcher struct {
	Dirs []string
	// Ignore reports files whose changes are ignored, such as generated
	// output.
	Ignore   func(path string) bool
	Debounce time.Duration
	Log      *slog.Logger
	// Func runs once per batch of changes. Its error is logged and the
	// watch goes on.
	Func func(ctx context.Context) error
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	for _, dir := range w.Dirs {
		if err := fw.Add(dir); err != nil {
			return err
		}
		w.log().Debug("watching", "dir", dir)
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log().Debug("change", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				timer.Reset(debounce)
				continue
			}
			w.log().Warn("watch error", "error", err)
		case <-timer.C:
			if err := w.Func(ctx); err != nil {
				w.log().Error("run failed", "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if filepath.Ext(ev.Name) != ".go" || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return w.Ignore == nil || !w.Ignore(ev.Name)
}

func (w *Watcher) log() *slog.Logger {
	if w.Log == nil {
		return slog.Default()
	}
	return w.Log
}
