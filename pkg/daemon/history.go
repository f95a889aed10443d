package daemon

import "time"

// autoloadThreshold is how long an identical autoload request for the same
// device is treated as a duplicate hotplug notification.
const autoloadThreshold = 15 * time.Second

type autoloadEntry struct {
	when   time.Time
	preset string
}

// AutoloadHistory remembers the most recent autoload decision per device.
//
// Hotplug fires multiple times per physical (re)connection, and a naive
// autoload would restart the pipeline each time, briefly losing the grab of
// the keyboard. This is a best-effort debounce, not exact deduplication.
type AutoloadHistory struct {
	history map[string]autoloadEntry
	now     func() time.Time
}

// NewAutoloadHistory constructs an empty history. now is injectable so tests
// can move the clock instead of sleeping.
func NewAutoloadHistory(now func() time.Time) *AutoloadHistory {
	if now == nil {
		now = time.Now
	}
	return &AutoloadHistory{
		history: make(map[string]autoloadEntry),
		now:     now,
	}
}

// Remember records that preset was just autoloaded for device.
func (h *AutoloadHistory) Remember(device, preset string) {
	h.history[device] = autoloadEntry{when: h.now(), preset: preset}
}

// Forget drops the entry for device. Called when the injection is stopped or
// started by hand, so the next hotplug is treated as fresh.
func (h *AutoloadHistory) Forget(device string) {
	delete(h.history, device)
}

// MayAutoload checks if autoloading preset for device would be redundant.
// A different preset always may load; the same preset may load again once
// the last attempt is older than the debounce window, which is assumed to
// mean a genuine reconnection rather than a duplicate notification.
func (h *AutoloadHistory) MayAutoload(device, preset string) bool {
	entry, ok := h.history[device]
	if !ok {
		return true
	}
	if entry.preset != preset {
		return true
	}
	return entry.when.Before(h.now().Add(-autoloadThreshold))
}
