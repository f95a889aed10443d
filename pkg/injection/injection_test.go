package injection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	input "github.com/holoplot/go-evdev"
)

func TestKeycodeTable(t *testing.T) {
	table := NewKeycodeTable()

	_, ok := table.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())

	table.Update(map[string]int{"a": 30, "b": 48})
	code, ok := table.Get("a")
	require.True(t, ok)
	assert.Equal(t, 30, code)
	assert.Equal(t, 2, table.Len())

	// last writer wins
	table.Update(map[string]int{"a": 52})
	code, _ = table.Get("a")
	assert.Equal(t, 52, code)
	assert.Equal(t, 2, table.Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "starting", Starting.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "stopped", Stopped.String())
}

func TestBuildRemap(t *testing.T) {
	table := NewKeycodeTable()
	table.Update(map[string]int{"a": 30, "b": 48})

	inj, err := NewInjector("device 1", []string{"/dev/input/event11"}, map[string]string{
		"1,2,1":   "a", // EV_KEY code 2 -> a
		"1,3,1":   "B", // key names are case insensitive
		"1,4,1":   "unknownname",
		"3,5,1":   "a", // not EV_KEY
		"garbage": "a",
		"x,2,1":   "a",
	}, table, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.Equal(t, map[input.EvCode]input.EvCode{
		input.EvCode(2): input.EvCode(30),
		input.EvCode(3): input.EvCode(48),
	}, inj.remap)

	assert.Equal(t, Unknown, inj.State())
}

func TestInjectorNeedsEventNodes(t *testing.T) {
	_, err := NewInjector("device 1", nil, nil, NewKeycodeTable(), zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestStopWithoutStart(t *testing.T) {
	inj, err := NewInjector("device 1", []string{"/dev/input/event11"}, nil, NewKeycodeTable(), zap.NewNop().Sugar())
	require.NoError(t, err)

	// stopping is idempotent and safe before the workers ever ran
	inj.Stop()
	inj.Stop()
	assert.Equal(t, Stopped, inj.State())
}
