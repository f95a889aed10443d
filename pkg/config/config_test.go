package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ManifestName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStoreLoadAndGet(t *testing.T) {
	store := NewStore()
	path := writeConfig(t, `{"autoload": {"device 1": "preset7"}, "version": "1.0"}`)
	require.NoError(t, store.Load(path))

	value, ok := store.Get("autoload", "device 1")
	require.True(t, ok)
	assert.Equal(t, "preset7", value)

	value, ok = store.Get("version")
	require.True(t, ok)
	assert.Equal(t, "1.0", value)

	_, ok = store.Get("autoload", "device 2")
	assert.False(t, ok)

	_, ok = store.Get("nope", "nope", "nope")
	assert.False(t, ok)

	// leaf values cannot be descended into
	_, ok = store.Get("version", "minor")
	assert.False(t, ok)
}

func TestStoreLoadErrors(t *testing.T) {
	store := NewStore()

	err := store.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := writeConfig(t, `{broken`)
	assert.Error(t, store.Load(path))
}

func TestStoreRemoveAndSave(t *testing.T) {
	store := NewStore()
	path := writeConfig(t, `{"autoload": {"device 1": "preset7", "device 2": "foo"}}`)
	require.NoError(t, store.Load(path))

	store.Remove("autoload", "device 1")
	// removing missing paths is harmless
	store.Remove("autoload", "device 9")
	store.Remove("nope", "nope")
	require.NoError(t, store.Save())

	reloaded := NewStore()
	require.NoError(t, reloaded.Load(path))
	_, ok := reloaded.Get("autoload", "device 1")
	assert.False(t, ok)
	value, ok := reloaded.Get("autoload", "device 2")
	require.True(t, ok)
	assert.Equal(t, "foo", value)
}

func TestSaveWithoutLoad(t *testing.T) {
	assert.Error(t, NewStore().Save())
}

func TestAutoloadDevices(t *testing.T) {
	store := NewStore()
	path := writeConfig(t, `{"autoload": {"b device": "x", "a device": 5, "c device": "y"}}`)
	require.NoError(t, store.Load(path))

	// sorted, and corrupt values still listed so the daemon can clean them
	assert.Equal(t, []string{"a device", "b device", "c device"}, store.AutoloadDevices())

	assert.Nil(t, NewStore().AutoloadDevices())
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/foo/config.json", ManifestPath("/foo"))
	assert.Equal(t, "/foo/presets/device 1/preset8.json", PresetPath("/foo", "device 1", "preset8"))
	assert.Equal(t, "/foo/xmodmap", XmodmapPath("/foo"))
}

func TestParseXmodmap(t *testing.T) {
	dump := strings.Join([]string{
		"keycode  38 = a A a A adiaeresis",
		"keycode  56 = b B b B",
		"",
		"keycode  57 =",
		"garbage line",
		"keycode  x = c",
		// later line wins for a repeated symbol
		"keycode  60 = a",
	}, "\n")

	codes, err := ParseXmodmap(strings.NewReader(dump))
	require.NoError(t, err)

	// X keycodes are kernel keycodes + 8
	assert.Equal(t, 52, codes["a"])
	assert.Equal(t, 48, codes["b"])
	assert.Equal(t, 30, codes["adiaeresis"])
	_, ok := codes["c"]
	assert.False(t, ok)
}

func TestLoadMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mapping": {"1,30,1": "a"}}`), 0o644))

	mapping, err := LoadMapping(path)
	require.NoError(t, err)
	assert.Equal(t, "a", mapping.Keys["1,30,1"])

	_, err = LoadMapping(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o644))
	mapping, err = LoadMapping(empty)
	require.NoError(t, err)
	assert.NotNil(t, mapping.Keys)
}
