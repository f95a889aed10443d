package daemon

import (
	"github.com/TRPB/key-mapper/pkg/config"
	"github.com/TRPB/key-mapper/pkg/injection"
)

// Group is one logical device: a stable name covering every raw event node
// the hardware exposes.
type Group struct {
	Paths []string
}

// DeviceRegistry enumerates connected input devices grouped by logical name.
type DeviceRegistry interface {
	// Snapshot returns the current groups. The returned map must not be
	// mutated by the registry afterwards.
	Snapshot() map[string]Group
	// Refresh re-enumerates the hardware.
	Refresh()
	// NameOf reports the kernel device name behind a raw event node path.
	NameOf(path string) (string, error)
}

// ConfigStore holds the active configuration manifest.
type ConfigStore interface {
	Load(path string) error
	Get(keyPath ...string) (any, bool)
	Remove(keyPath ...string)
	Save() error
	AutoloadDevices() []string
}

// Pipeline is one running injection for one device.
type Pipeline interface {
	Start() error
	Stop()
	State() injection.State
}

// PipelineFactory constructs pipelines. Construction may fail at the OS
// level; starting is asynchronous.
type PipelineFactory interface {
	New(device string, group Group, mapping *config.Mapping) (Pipeline, error)
}

// Journal records injection lifecycle decisions for later inspection.
type Journal interface {
	Record(device, preset, action string) error
}
