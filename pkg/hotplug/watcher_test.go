package hotplug

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	calls chan string
}

func (s *recordingSink) AutoloadSingle(devicePath string) {
	s.calls <- devicePath
}

func TestWatcherNotifiesForEventNodes(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{calls: make(chan string, 8)}
	watcher := NewWatcher(dir, sink, time.Millisecond, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// give the watcher a moment to set up
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "event13")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	select {
	case got := <-sink.calls:
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no autoload notification for new event node")
	}
}

func TestWatcherIgnoresOtherNodes(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{calls: make(chan string, 8)}
	watcher := NewWatcher(dir, sink, time.Millisecond, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(50 * time.Millisecond)

	// mouse and js nodes also show up in /dev/input but are not event nodes
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mouse3"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "js0"), nil, 0o644))

	select {
	case got := <-sink.calls:
		t.Fatalf("unexpected notification for %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatchMissingDir(t *testing.T) {
	watcher := NewWatcher(filepath.Join(t.TempDir(), "nope"), &recordingSink{}, time.Millisecond, zap.NewNop().Sugar())
	assert.Error(t, watcher.Watch(context.Background()))
}
