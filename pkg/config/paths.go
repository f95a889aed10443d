package config

import "path/filepath"

// XmodmapName is the optional dump of the session's xmodmap keycodes inside
// a configuration directory.
const XmodmapName = "xmodmap"

// ManifestPath returns the manifest location inside a configuration
// directory.
func ManifestPath(configDir string) string {
	return filepath.Join(configDir, ManifestName)
}

// PresetPath returns where the preset file for a device is expected.
func PresetPath(configDir, device, preset string) string {
	return filepath.Join(configDir, "presets", device, preset+".json")
}

// XmodmapPath returns the location of the optional keycode dump.
func XmodmapPath(configDir string) string {
	return filepath.Join(configDir, XmodmapName)
}
