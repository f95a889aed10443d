package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TRPB/key-mapper/pkg/config"
	"github.com/TRPB/key-mapper/pkg/control"
	"github.com/TRPB/key-mapper/pkg/daemon"
	"github.com/TRPB/key-mapper/pkg/devices/evdev"
	"github.com/TRPB/key-mapper/pkg/hotplug"
	"github.com/TRPB/key-mapper/pkg/injection"
	journalmemory "github.com/TRPB/key-mapper/pkg/journal/memory"
	journalsqlite "github.com/TRPB/key-mapper/pkg/journal/sqlite"
)

func main() {
	err := run()
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

func run() error {
	socketPath := flag.String("socket", control.SocketPath, "path of the control socket")
	stateDir := flag.String("state-dir", "/var/lib/key-mapper", "directory for the injection journal")
	watchHotplug := flag.Bool("hotplug", true, "watch /dev/input and autoload on hotplug")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := evdev.NewRegistry(logger)
	keycodes := injection.NewKeycodeTable()

	d := daemon.New(daemon.Options{
		Registry: registry,
		Store:    config.NewStore(),
		Factory:  &injectorFactory{keycodes: keycodes, log: logger},
		Journal:  openJournal(*stateDir, logger),
		Keycodes: keycodes,
		Log:      logger,
	})
	// No pipeline may outlive its registry owner, also on error paths.
	defer d.StopAll()

	server, err := control.Listen(*socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("claim control socket: %w", err)
	}

	logger.Infof("started key-mapper daemon on %q", *socketPath)

	errChan := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := server.Serve(ctx)
		if err != nil {
			errChan <- fmt.Errorf("serve control socket: %w", err)
		}
	}()

	if *watchHotplug {
		watcher := hotplug.NewWatcher(hotplug.DeviceDir, d, 0, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := watcher.Watch(ctx)
			if err != nil {
				errChan <- fmt.Errorf("watch hotplug: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := systemdNotifyLoop(ctx)
		if err != nil {
			errChan <- fmt.Errorf("systemd notify: %w", err)
		}
	}()

	err = <-errChan
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutting down")
		stop()
		d.StopAll()
		wg.Wait()
		return nil
	case err != nil:
		return err
	}

	return nil
}

// injectorFactory builds evdev-backed pipelines for the daemon.
type injectorFactory struct {
	keycodes *injection.KeycodeTable
	log      *zap.SugaredLogger
}

func (f *injectorFactory) New(device string, group daemon.Group, mapping *config.Mapping) (daemon.Pipeline, error) {
	return injection.NewInjector(device, group.Paths, mapping.Keys, f.keycodes, f.log)
}

// openJournal opens the sqlite journal in the state directory, falling back
// to an in-memory one so a broken state dir never blocks injections.
func openJournal(stateDir string, logger *zap.SugaredLogger) daemon.Journal {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		logger.Errorf("create state dir: %v, journal is in-memory only", err)
		return journalmemory.NewStore()
	}

	store, err := journalsqlite.NewStore(filepath.Join(stateDir, "journal.db"), logger)
	if err != nil {
		logger.Errorf("open journal: %v, journal is in-memory only", err)
		return journalmemory.NewStore()
	}
	return store
}

func systemdNotifyLoop(ctx context.Context) error {
	// tell systemd that we're ready
	supported, err := sd.SdNotify(false, sd.SdNotifyReady)
	if err != nil {
		return fmt.Errorf("notify systemd: %w", err)
	}
	if !supported {
		return nil
	}

	_, _ = sd.SdNotify(false, "STATUS=Orchestrating keyboard remapping pipelines")

	// notify watchdog
	t, err := sd.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("check watchdog: %w", err)
	}
	// if watchdog is not enabled, we don't need to notify it
	if t == 0 {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-time.After(t / 2):
			_, err := sd.SdNotify(false, sd.SdNotifyWatchdog)
			if err != nil {
				return fmt.Errorf("notify watchdog: %w", err)
			}
		}
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()

	loggerConfig.OutputPaths = []string{"stdout"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}
