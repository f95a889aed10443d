// keymapperctl talks to the running key-mapper daemon over its control
// socket.
package main

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/TRPB/key-mapper/pkg/control"
	journalsqlite "github.com/TRPB/key-mapper/pkg/journal/sqlite"
)

type Context struct {
	Client   *control.Client
	StateDir string
}

var cli struct {
	Socket   string `help:"Path of the daemon control socket." default:"${socket}"`
	StateDir string `help:"Daemon state directory (for the log command)." default:"/var/lib/key-mapper"`

	Start        StartCmd        `cmd:"" help:"Start injecting a preset for a device."`
	Stop         StopCmd         `cmd:"" help:"Stop the injection for a device."`
	StopAll      StopAllCmd      `cmd:"" name:"stop-all" help:"Stop every injection."`
	State        StateCmd        `cmd:"" help:"Show the injection state of a device."`
	Autoload     AutoloadCmd     `cmd:"" help:"Apply the configured autoload assignments."`
	SetConfigDir SetConfigDirCmd `cmd:"" name:"set-config-dir" help:"Point the daemon at a configuration directory."`
	Hello        HelloCmd        `cmd:"" help:"Check that the daemon is reachable."`
	Log          LogCmd          `cmd:"" help:"Show recent injection journal entries."`
}

func main() {
	ctx := kong.Parse(&cli, kong.Vars{"socket": control.SocketPath})
	err := ctx.Run(&Context{
		Client:   control.NewClient(cli.Socket),
		StateDir: cli.StateDir,
	})
	ctx.FatalIfErrorf(err)
}

type StartCmd struct {
	Device string `arg:"" help:"Device name or /dev/input path."`
	Preset string `arg:"" help:"Preset name."`
}

func (c *StartCmd) Run(ctx *Context) error {
	ok, err := ctx.Client.StartInjecting(c.Device, c.Preset)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("could not start injecting %q for %q, see the daemon log", c.Preset, c.Device)
	}
	return nil
}

type StopCmd struct {
	Device string `arg:"" help:"Device name or /dev/input path."`
}

func (c *StopCmd) Run(ctx *Context) error {
	return ctx.Client.StopInjecting(c.Device)
}

type StopAllCmd struct{}

func (c *StopAllCmd) Run(ctx *Context) error {
	return ctx.Client.StopAll()
}

type StateCmd struct {
	Device string `arg:"" help:"Device name."`
}

func (c *StateCmd) Run(ctx *Context) error {
	state, err := ctx.Client.GetState(c.Device)
	if err != nil {
		return err
	}
	fmt.Println(state)
	return nil
}

type AutoloadCmd struct {
	Device string `help:"Only autoload for this /dev/input path (hotplug entry point)."`
}

func (c *AutoloadCmd) Run(ctx *Context) error {
	if c.Device != "" {
		return ctx.Client.AutoloadSingle(c.Device)
	}
	return ctx.Client.Autoload()
}

type SetConfigDirCmd struct {
	Dir string `arg:"" optional:"" help:"Configuration directory. Defaults to the user's key-mapper config dir."`
}

func (c *SetConfigDirCmd) Run(ctx *Context) error {
	dir := c.Dir
	if dir == "" {
		dir = filepath.Join(xdg.ConfigHome, "key-mapper")
	}
	return ctx.Client.SetConfigDir(dir)
}

type HelloCmd struct {
	Message string `default:"hello" help:"Message to echo."`
}

func (c *HelloCmd) Run(ctx *Context) error {
	echo, err := ctx.Client.Hello(c.Message)
	if err != nil {
		return err
	}
	if echo != c.Message {
		return fmt.Errorf("daemon echoed %q instead of %q", echo, c.Message)
	}
	fmt.Println(echo)
	return nil
}

type LogCmd struct {
	Limit int `short:"n" default:"20" help:"Number of entries to show."`
}

func (c *LogCmd) Run(ctx *Context) error {
	store, err := journalsqlite.NewStore(filepath.Join(ctx.StateDir, "journal.db"), zap.NewNop().Sugar())
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	entries, err := store.Recent(c.Limit)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	for _, entry := range entries {
		preset := entry.Preset
		if preset == "" {
			preset = "-"
		}
		fmt.Printf("%s  %-8s  %-24s  %s\n", entry.When.Format("2006-01-02 15:04:05"), entry.Action, entry.Device, preset)
	}
	return nil
}
