package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	w := &Watcher{Ignore: func(p string) bool { return strings.HasSuffix(p, "_dao.go") }}
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "/src/store.go", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/src/store.go", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/src/store.go", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/src/user_store_dao.go", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/src/daogen.yaml", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/src/.store.go.swp", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.ev.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.ev))
		})
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	var runs atomic.Int32
	w := &Watcher{
		Dirs:     []string{dir},
		Debounce: 20 * time.Millisecond,
		Func: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	for i := range 3 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "store.go"), []byte{byte('a' + i)}, 0o644))
	}
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunMissingDir(t *testing.T) {
	w := &Watcher{Dirs: []string{filepath.Join(t.TempDir(), "missing")}, Func: func(context.Context) error { return nil }}
	assert.Error(t, w.Run(context.Background()))
}
