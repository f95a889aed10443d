package control_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TRPB/key-mapper/pkg/config"
	"github.com/TRPB/key-mapper/pkg/control"
	"github.com/TRPB/key-mapper/pkg/daemon"
	"github.com/TRPB/key-mapper/pkg/devices/memory"
	"github.com/TRPB/key-mapper/pkg/injection"
)

type nopFactory struct{}

type nopPipeline struct{}

func (nopPipeline) Start() error           { return nil }
func (nopPipeline) Stop()                  {}
func (nopPipeline) State() injection.State { return injection.Running }

func (nopFactory) New(string, daemon.Group, *config.Mapping) (daemon.Pipeline, error) {
	return nopPipeline{}, nil
}

func newTestServer(t *testing.T) (*control.Client, *memory.Registry) {
	t.Helper()

	log := zap.NewNop().Sugar()
	registry := memory.NewRegistry()
	d := daemon.New(daemon.Options{
		Registry: registry,
		Store:    config.NewStore(),
		Factory:  nopFactory{},
		Log:      log,
	})

	socketPath := filepath.Join(t.TempDir(), "control.sock")
	server, err := control.Listen(socketPath, d, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return control.NewClient(socketPath), registry
}

func TestHelloRoundTrip(t *testing.T) {
	client, _ := newTestServer(t)

	echo, err := client.Hello("foo")
	require.NoError(t, err)
	assert.Equal(t, "foo", echo)
}

func TestMethodsOverSocket(t *testing.T) {
	client, registry := newTestServer(t)
	registry.Add("device 1", "/dev/input/event11")

	// no config dir configured, so starting fails but does not fault
	ok, err := client.StartInjecting("device 1", "preset8")
	require.NoError(t, err)
	assert.False(t, ok)

	state, err := client.GetState("device 1")
	require.NoError(t, err)
	assert.Equal(t, injection.Unknown, state)

	assert.NoError(t, client.StopInjecting("device 1"))
	assert.NoError(t, client.StopAll())
	assert.NoError(t, client.Autoload())
	assert.NoError(t, client.AutoloadSingle("/dev/input/event11"))
	assert.NoError(t, client.SetConfigDir("/nonexistent"))
}

func TestSingleOwner(t *testing.T) {
	log := zap.NewNop().Sugar()
	d := daemon.New(daemon.Options{
		Registry: memory.NewRegistry(),
		Store:    config.NewStore(),
		Factory:  nopFactory{},
		Log:      log,
	})

	socketPath := filepath.Join(t.TempDir(), "control.sock")
	server, err := control.Listen(socketPath, d, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Serve(ctx) }()

	// give the accept loop a moment
	time.Sleep(50 * time.Millisecond)

	// a second daemon must refuse to start
	_, err = control.Listen(socketPath, d, log)
	assert.ErrorIs(t, err, control.ErrAlreadyRunning)
}

func TestStaleSocketIsReclaimed(t *testing.T) {
	log := zap.NewNop().Sugar()
	d := daemon.New(daemon.Options{
		Registry: memory.NewRegistry(),
		Store:    config.NewStore(),
		Factory:  nopFactory{},
		Log:      log,
	})

	socketPath := filepath.Join(t.TempDir(), "control.sock")
	// leftover of a crashed daemon: a path nobody listens on
	require.NoError(t, os.WriteFile(socketPath, nil, 0o600))

	server, err := control.Listen(socketPath, d, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Serve(ctx) }()

	client := control.NewClient(socketPath)
	echo, err := client.Hello("alive")
	require.NoError(t, err)
	assert.Equal(t, "alive", echo)
}
