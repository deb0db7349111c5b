package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsCreate(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	p := filepath.Join(root, "new.mkv")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))

	select {
	case ev := <-w.Events:
		require.Equal(t, p, ev.Path)
		require.True(t, ev.Op.Has(fsnotify.Create))
	case <-time.After(5 * time.Second):
		require.Fail(t, "no event received")
	}

	cancel()
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.Fail(t, "watcher did not stop")
	}
	for range w.Events {
	}
}
