// Package control is the daemon's IPC surface: a unix socket speaking one
// JSON request and one JSON response per connection, plus the matching
// client. The socket has single-owner semantics, a second daemon refuses to
// start.
package control

// SocketPath is where the daemon publishes its control socket.
const SocketPath = "/run/key-mapper/control.sock"

type request struct {
	Method string `json:"method"`
	Device string `json:"device,omitempty"`
	Preset string `json:"preset,omitempty"`
	Dir    string `json:"dir,omitempty"`
	Echo   string `json:"echo,omitempty"`
}

type response struct {
	OK    bool   `json:"ok"`
	State int    `json:"state"`
	Echo  string `json:"echo,omitempty"`
}

const (
	methodStopInjecting  = "stop_injecting"
	methodGetState       = "get_state"
	methodStartInjecting = "start_injecting"
	methodStopAll        = "stop_all"
	methodSetConfigDir   = "set_config_dir"
	methodAutoload       = "autoload"
	methodAutoloadSingle = "autoload_single"
	methodHello          = "hello"
)
