package memory

import (
	"fmt"
	"sync"

	"github.com/TRPB/key-mapper/pkg/daemon"
)

// Registry is an in-memory device registry for tests. Pending groups become
// visible on the next Refresh, mimicking hardware that shows up between two
// enumerations.
type Registry struct {
	mu        sync.Mutex
	groups    map[string]daemon.Group
	pending   map[string]daemon.Group
	names     map[string]string
	Refreshes int
}

func NewRegistry() *Registry {
	return &Registry{
		groups:  make(map[string]daemon.Group),
		pending: make(map[string]daemon.Group),
		names:   make(map[string]string),
	}
}

// Add makes a group visible immediately and registers kernel names for its
// paths.
func (r *Registry) Add(device string, paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[device] = daemon.Group{Paths: paths}
	for _, path := range paths {
		r.names[path] = device
	}
}

// AddPending stages a group that only appears after the next Refresh.
func (r *Registry) AddPending(device string, paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[device] = daemon.Group{Paths: paths}
	for _, path := range paths {
		r.names[path] = device
	}
}

// SetName overrides the kernel name reported for a raw path.
func (r *Registry) SetName(path, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[path] = name
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
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Refreshes++
	for name, group := range r.pending {
		r.groups[name] = group
	}
	r.pending = make(map[string]daemon.Group)
}

func (r *Registry) NameOf(path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.names[path]
	if !ok {
		return "", fmt.Errorf("no such device: %s", path)
	}
	return name, nil
}
