package evdev

import (
	"fmt"
	"strings"
	"sync"

	input "github.com/holoplot/go-evdev"
	"go.uber.org/zap"

	"github.com/TRPB/key-mapper/pkg/daemon"
	"github.com/TRPB/key-mapper/pkg/injection"
)

// Registry enumerates /dev/input and groups event nodes by the kernel device
// name. Multiple nodes of the same physical device (a keyboard often exposes
// a media-key node next to the main one) end up in one group.
type Registry struct {
	mu     sync.Mutex
	groups map[string]daemon.Group
	log    *zap.SugaredLogger
}

func NewRegistry(log *zap.SugaredLogger) *Registry {
	r := &Registry{
		groups: make(map[string]daemon.Group),
		log:    log,
	}
	r.Refresh()
	return r
}

func (r *Registry) Snapshot() map[string]daemon.Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]daemon.Group, len(r.groups))
	for name, group := range r.groups {
		snapshot[name] = group
	}
	return snapshot
}

func (r *Registry) Refresh() {
	paths, err := input.ListDevicePaths()
	if err != nil {
		r.log.Errorf("list input devices: %v", err)
		return
	}

	groups := make(map[string]daemon.Group)
	for _, devicePath := range paths {
		name, keyCapable := probe(devicePath.Path)
		if name == "" {
			name = devicePath.Name
		}
		if !keyCapable {
			continue
		}
		// The daemon's own virtual output devices are not remappable
		// hardware.
		if strings.Contains(name, injection.DevicePrefix) {
			continue
		}

		group := groups[name]
		group.Paths = append(group.Paths, devicePath.Path)
		groups[name] = group
	}

	r.mu.Lock()
	r.groups = groups
	r.mu.Unlock()

	r.log.Debugf("found %d device groups", len(groups))
}

func (r *Registry) NameOf(path string) (string, error) {
	dev, err := input.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", path, err)
	}
	defer dev.Close()

	name, err := dev.Name()
	if err != nil {
		return "", fmt.Errorf("read name of %q: %w", path, err)
	}
	return name, nil
}

// probe opens an event node to read its kernel name and whether it emits key
// events at all. Nodes that cannot be opened are skipped silently, they are
// usually gone by the time we look.
func probe(path string) (string, bool) {
	dev, err := input.Open(path)
	if err != nil {
		return "", false
	}
	defer dev.Close()

	name, err := dev.Name()
	if err != nil {
		name = ""
	}

	return name, len(dev.CapableEvents(input.EV_KEY)) > 0
}
