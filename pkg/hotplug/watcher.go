// Package hotplug turns the appearance of new event nodes under /dev/input
// into autoload requests.
package hotplug

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DeviceDir is the directory the kernel creates event nodes in.
const DeviceDir = "/dev/input"

// Autoloader receives one notification per new event node.
type Autoloader interface {
	AutoloadSingle(devicePath string)
}

type Watcher struct {
	dir    string
	sink   Autoloader
	settle time.Duration
	log    *zap.SugaredLogger
}

// NewWatcher watches dir for new event nodes. settle is how long to wait
// after the node appears before notifying; right after creation the node is
// often not openable yet. Zero means a sensible default.
func NewWatcher(dir string, sink Autoloader, settle time.Duration, log *zap.SugaredLogger) *Watcher {
	if settle == 0 {
		settle = 500 * time.Millisecond
	}
	return &Watcher{dir: dir, sink: sink, settle: settle, log: log}
}

// Watch blocks until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %q: %w", w.dir, err)
	}

	w.log.Debugf("watching %q for hotplug events", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasPrefix(filepath.Base(event.Name), "event") {
				continue
			}
			w.log.Debugf("hotplug: %s", event.Name)
			go w.notify(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Errorf("watch %q: %v", w.dir, err)
		}
	}
}

func (w *Watcher) notify(ctx context.Context, path string) {
	select {
	case <-ctx.Done():
	case <-time.After(w.settle):
		w.sink.AutoloadSingle(path)
	}
}
