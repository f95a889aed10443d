package injection

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	input "github.com/holoplot/go-evdev"
	"go.uber.org/zap"
)

// DevicePrefix starts the kernel name of every virtual device the injector
// creates. The device registry and the autoload path use it to recognize the
// daemon's own output devices.
const DevicePrefix = "key-mapper"

// Injector is one running remapping pipeline for one logical device. It
// grabs every event node of the device, translates key events according to
// the preset and writes the result to a virtual output device.
//
// Start returns once the workers are spawned; grabbing happens
// asynchronously, so the state is Starting for a short while.
type Injector struct {
	device   string
	paths    []string
	remap    map[input.EvCode]input.EvCode
	keycodes *KeycodeTable
	log      *zap.SugaredLogger

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInjector(device string, paths []string, keys map[string]string, keycodes *KeycodeTable, log *zap.SugaredLogger) (*Injector, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("device %q has no event nodes", device)
	}

	inj := &Injector{
		device:   device,
		paths:    paths,
		keycodes: keycodes,
		log:      log,
		stop:     make(chan struct{}),
	}
	inj.remap = inj.buildRemap(keys)
	inj.state.Store(int32(Unknown))
	return inj, nil
}

// buildRemap turns preset entries ("type,code,value" -> key name) into a
// keycode translation table using the process-wide keycode names.
func (inj *Injector) buildRemap(keys map[string]string) map[input.EvCode]input.EvCode {
	remap := make(map[input.EvCode]input.EvCode, len(keys))
	for descriptor, target := range keys {
		fields := strings.Split(descriptor, ",")
		if len(fields) < 2 {
			inj.log.Debugf("malformed key %q in preset", descriptor)
			continue
		}

		evType, err := strconv.Atoi(fields[0])
		if err != nil || evType != int(input.EV_KEY) {
			continue
		}
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}

		targetCode, ok := inj.keycodes.Get(strings.ToLower(target))
		if !ok {
			inj.log.Debugf("unknown target key %q", target)
			continue
		}

		remap[input.EvCode(code)] = input.EvCode(targetCode)
	}
	return remap
}

// Start spawns the injection workers and returns immediately.
func (inj *Injector) Start() error {
	inj.state.Store(int32(Starting))
	go inj.run()
	return nil
}

// Stop asks the workers to stop. It does not wait for them to terminate.
func (inj *Injector) Stop() {
	inj.stopOnce.Do(func() {
		close(inj.stop)
	})
	inj.state.Store(int32(Stopped))
}

func (inj *Injector) State() State {
	return State(inj.state.Load())
}

func (inj *Injector) run() {
	sources := make([]*input.InputDevice, 0, len(inj.paths))
	capabilities := make(map[input.EvType][]input.EvCode)

	for _, path := range inj.paths {
		dev, err := input.Open(path)
		if err != nil {
			inj.log.Errorf("open %q: %v", path, err)
			continue
		}
		if err := dev.Grab(); err != nil {
			inj.log.Errorf("grab %q: %v", path, err)
			dev.Close()
			continue
		}
		sources = append(sources, dev)

		for _, evType := range dev.CapableTypes() {
			capabilities[evType] = append(capabilities[evType], dev.CapableEvents(evType)...)
		}
	}

	if len(sources) == 0 {
		inj.log.Errorf("could not open any event node of %q", inj.device)
		inj.state.Store(int32(Stopped))
		return
	}

	// Remapped targets have to be in the capabilities as well, otherwise the
	// kernel drops the written events.
	for _, target := range inj.remap {
		capabilities[input.EV_KEY] = append(capabilities[input.EV_KEY], target)
	}

	output, err := input.CreateDevice(
		fmt.Sprintf("%s %s forwarded", DevicePrefix, inj.device),
		input.InputID{BusType: 0x03, Vendor: 0x1209, Product: 0x0001, Version: 1},
		capabilities,
	)
	if err != nil {
		inj.log.Errorf("create output device for %q: %v", inj.device, err)
		inj.release(sources, nil)
		return
	}

	// Stop may have been called while the devices were still being grabbed.
	select {
	case <-inj.stop:
		inj.release(sources, output)
		return
	default:
	}

	inj.state.Store(int32(Running))
	inj.log.Debugf("injecting for %q from %d event nodes", inj.device, len(sources))

	events := make(chan *input.InputEvent)
	for _, dev := range sources {
		go inj.read(dev, events)
	}

	for {
		select {
		case <-inj.stop:
			inj.release(sources, output)
			return
		case event := <-events:
			if event.Type == input.EV_KEY {
				if target, ok := inj.remap[event.Code]; ok {
					event.Code = target
				}
			}
			if err := output.WriteOne(event); err != nil {
				inj.log.Errorf("write event: %v", err)
			}
		}
	}
}

func (inj *Injector) read(dev *input.InputDevice, events chan<- *input.InputEvent) {
	for {
		event, err := dev.ReadOne()
		if err != nil {
			// Closed by release, or the hardware is gone.
			return
		}
		select {
		case events <- event:
		case <-inj.stop:
			return
		}
	}
}

func (inj *Injector) release(sources []*input.InputDevice, output *input.InputDevice) {
	for _, dev := range sources {
		_ = dev.Ungrab()
		_ = dev.Close()
	}
	if output != nil {
		_ = output.Close()
	}
	inj.state.Store(int32(Stopped))
}
