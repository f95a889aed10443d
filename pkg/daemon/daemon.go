package daemon

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TRPB/key-mapper/pkg/config"
	"github.com/TRPB/key-mapper/pkg/injection"
)

// rawPathPrefix marks identifiers that are kernel event nodes rather than
// logical device names.
const rawPathPrefix = "/dev/input/"

// registryRefreshInterval rate-limits forced device re-enumeration.
const registryRefreshInterval = 10 * time.Second

// Daemon starts and stops injection pipelines based on the configuration.
//
// It has no knowledge about the logged in user and cannot pick a config
// directory on its own; it has to be told via SetConfigDir and will keep
// using that directory afterwards.
//
// All public methods serialize on one mutex, so two IPC calls never execute
// concurrently inside the daemon.
type Daemon struct {
	mu sync.Mutex

	pipelines   map[string]Pipeline
	configDir   string
	history     *AutoloadHistory
	refreshedAt time.Time

	registry DeviceRegistry
	store    ConfigStore
	factory  PipelineFactory
	journal  Journal
	keycodes *injection.KeycodeTable

	now func() time.Time
	log *zap.SugaredLogger
}

// Options carries the daemon's collaborators. Journal may be nil. Now may be
// nil, in which case the wall clock is used; tests inject their own clock to
// exercise the debounce and refresh windows without sleeping.
type Options struct {
	Registry DeviceRegistry
	Store    ConfigStore
	Factory  PipelineFactory
	Journal  Journal
	Keycodes *injection.KeycodeTable
	Now      func() time.Time
	Log      *zap.SugaredLogger
}

func New(opts Options) *Daemon {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	keycodes := opts.Keycodes
	if keycodes == nil {
		keycodes = injection.NewKeycodeTable()
	}

	return &Daemon{
		pipelines: make(map[string]Pipeline),
		history:   NewAutoloadHistory(now),
		registry:  opts.Registry,
		store:     opts.Store,
		factory:   opts.Factory,
		journal:   opts.Journal,
		keycodes:  keycodes,
		now:       now,
		log:       opts.Log,
	}
}

// ConfigDir returns the active configuration directory, or "" if none was
// set yet.
func (d *Daemon) ConfigDir() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configDir
}

// resolve turns a raw event node path into the logical device name it
// belongs to. Identifiers that are not raw paths are returned unchanged, so
// resolving twice is harmless. Returns "" when the path is not known to the
// registry, which just means the hardware has not been enumerated (yet).
func (d *Daemon) resolve(identifier string) string {
	if !strings.HasPrefix(identifier, rawPathPrefix) {
		return identifier
	}

	for device, group := range d.registry.Snapshot() {
		for _, path := range group.Paths {
			if path == identifier {
				return device
			}
		}
	}

	d.log.Debugf("device path %s is not managed by key-mapper", identifier)
	return ""
}

// refreshDevices keeps the registry snapshot up to date. A refresh is forced
// when the last one is older than the rate limit, or when the given device
// cannot be found in the current snapshot.
func (d *Daemon) refreshDevices(device string) {
	now := d.now()
	if now.Sub(d.refreshedAt) > registryRefreshInterval {
		d.log.Debug("refreshing because last info is too old")
		d.registry.Refresh()
		d.refreshedAt = now
		return
	}

	if device == "" {
		return
	}

	snapshot := d.registry.Snapshot()
	if strings.HasPrefix(device, rawPathPrefix) {
		for _, group := range snapshot {
			for _, path := range group.Paths {
				if path == device {
					return
				}
			}
		}
		d.log.Debug("refreshing because path unknown")
	} else {
		if _, ok := snapshot[device]; ok {
			return
		}
		d.log.Debug("refreshing because name unknown")
	}

	d.registry.Refresh()
	d.refreshedAt = now
}

// SetConfigDir points the daemon at a new configuration directory. The
// directory must contain a manifest; otherwise the previous directory stays
// active. Already-running pipelines are not affected, only future start and
// autoload operations read from the new directory.
func (d *Daemon) SetConfigDir(configDir string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	manifest := config.ManifestPath(configDir)
	if _, err := os.Stat(manifest); err != nil {
		d.log.Errorf("%q does not exist", manifest)
		return
	}

	if err := d.store.Load(manifest); err != nil {
		d.log.Errorf("load %q: %v", manifest, err)
		return
	}

	d.configDir = configDir
}

// StartInjecting starts injecting the preset for the device. Returns true on
// success. If an injection is already ongoing for the device it is stopped
// first; if the new preset turns out to be invalid the previous injection is
// left running rather than interrupted.
func (d *Daemon) StartInjecting(device, preset string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startInjecting(device, preset)
}

func (d *Daemon) startInjecting(device, preset string) bool {
	d.refreshDevices(device)

	device = d.resolve(device)

	if d.configDir == "" {
		d.log.Error("tried to start an injection without configuring the daemon first via set-config-dir")
		return false
	}

	group, known := d.registry.Snapshot()[device]
	if !known {
		d.log.Errorf("could not find device %q", device)
		return false
	}

	presetPath := config.PresetPath(d.configDir, device, preset)
	mapping, err := config.LoadMapping(presetPath)
	if err != nil {
		d.log.Errorf("load preset: %v", err)
		return false
	}

	if d.pipelines[device] != nil {
		d.stopInjecting(device)
	}

	// Refresh the process-wide keycode table for each injection so it is up
	// to date when the system layout changed. Injection proceeds without it.
	d.loadKeycodes()

	pipeline, err := d.factory.New(device, group, mapping)
	if err != nil {
		d.log.Errorf("create pipeline for %q: %v", device, err)
		return false
	}
	if err := pipeline.Start(); err != nil {
		d.log.Errorf("start pipeline for %q: %v", device, err)
		return false
	}

	d.pipelines[device] = pipeline
	d.record(device, preset, "start")
	return true
}

// loadKeycodes reads the optional xmodmap dump of the user session into the
// process-wide keycode table. The daemon runs outside the session and cannot
// call `xmodmap -pke` itself.
func (d *Daemon) loadKeycodes() {
	path := config.XmodmapPath(d.configDir)
	file, err := os.Open(path)
	if err != nil {
		d.log.Errorf("could not find %q", path)
		return
	}
	defer file.Close()

	codes, err := config.ParseXmodmap(file)
	if err != nil {
		d.log.Errorf("parse %q: %v", path, err)
		return
	}

	d.log.Debugf("using keycodes from %q", path)
	d.keycodes.Update(codes)
}

// StopInjecting stops the injection for a single device. Doing this for a
// device without a running pipeline is a no-op.
func (d *Daemon) StopInjecting(device string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopInjecting(device)
}

func (d *Daemon) stopInjecting(device string) {
	pipeline := d.pipelines[device]
	if pipeline == nil {
		d.log.Debugf("tried to stop injection, but none is running for device %q", device)
		return
	}

	pipeline.Stop()
	delete(d.pipelines, device)
	d.history.Forget(device)
	d.record(device, "", "stop")
}

// StopAll stops every injection. Runs on daemon shutdown.
func (d *Daemon) StopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.log.Info("stopping all injections")
	for device := range d.pipelines {
		d.stopInjecting(device)
	}
}

// GetState reports the state of the device's pipeline, or Unknown when no
// pipeline is registered. No side effects.
func (d *Daemon) GetState(device string) injection.State {
	d.mu.Lock()
	defer d.mu.Unlock()

	pipeline := d.pipelines[device]
	if pipeline == nil {
		return injection.Unknown
	}
	return pipeline.State()
}

// autoload checks if autoloading for the identifier is a good idea and if
// so, does it. Unknown devices and devices without an assignment are normal
// and ignored silently.
func (d *Daemon) autoload(identifier string) {
	d.refreshDevices(identifier)

	device := d.resolve(identifier)
	if _, known := d.registry.Snapshot()[device]; !known {
		// Even after a refresh the device is unknown, so it is either not
		// relevant for key-mapper or not connected yet.
		return
	}

	value, ok := d.store.Get("autoload", device)
	if !ok {
		return
	}

	preset, isString := value.(string)
	if !isString {
		// Broken by a previous version; self-heal the config.
		d.log.Warnf("removing broken autoload entry for %q", device)
		d.store.Remove("autoload", device)
		if err := d.store.Save(); err != nil {
			d.log.Errorf("save config: %v", err)
		}
		return
	}

	d.log.Infof("autoloading %q", device)

	if !d.history.MayAutoload(device, preset) {
		d.log.Infof("not autoloading the same preset %q again for device %q", preset, device)
		return
	}

	d.startInjecting(device, preset)
	d.history.Remember(device, preset)
	d.record(device, preset, "autoload")
}

// AutoloadSingle injects the configured autoload preset for one hotplugged
// device. Paths that belong to the daemon's own virtual devices are dropped
// before any logging to keep hotplug spam out of the logs.
func (d *Daemon) AutoloadSingle(devicePath string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if strings.HasPrefix(devicePath, rawPathPrefix) {
		name, err := d.registry.NameOf(devicePath)
		if err != nil {
			return
		}
		// Never remap one of the daemon's own synthetic keyboards.
		if strings.Contains(name, injection.DevicePrefix) {
			return
		}
	}

	d.log.Infof("request to autoload for %q", devicePath)

	if d.configDir == "" {
		d.log.Errorf("tried to autoload %q without configuring the daemon first via set-config-dir", devicePath)
		return
	}

	d.autoload(devicePath)
}

// Autoload applies every configured autoload assignment of the current
// configuration directory.
func (d *Daemon) Autoload() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.configDir == "" {
		d.log.Error("tried to autoload without configuring the daemon first via set-config-dir")
		return
	}

	devices := d.store.AutoloadDevices()

	d.log.Info("autoloading for all devices")

	if len(devices) == 0 {
		d.log.Error("no presets configured to autoload")
		return
	}

	for _, device := range devices {
		d.autoload(device)
	}
}

// Hello echoes the argument. Liveness probe for clients and tests.
func (d *Daemon) Hello(out string) string {
	d.log.Infof("received %q from client", out)
	return out
}

func (d *Daemon) record(device, preset, action string) {
	if d.journal == nil {
		return
	}
	if err := d.journal.Record(device, preset, action); err != nil {
		d.log.Debugf("journal: %v", err)
	}
}
