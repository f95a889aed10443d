package control

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/TRPB/key-mapper/pkg/injection"
)

// Client talks to a running daemon. One connection per call.
type Client struct {
	socketPath string
}

func NewClient(socketPath string) *Client {
	if socketPath == "" {
		socketPath = SocketPath
	}
	return &Client{socketPath: socketPath}
}

func (c *Client) call(req request) (response, error) {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return response{}, fmt.Errorf("is the daemon running? %w", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return response{}, fmt.Errorf("send request: %w", err)
	}

	var resp response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}

	return resp, nil
}

// Hello sends an echo probe and returns what came back.
func (c *Client) Hello(out string) (string, error) {
	resp, err := c.call(request{Method: methodHello, Echo: out})
	if err != nil {
		return "", err
	}
	return resp.Echo, nil
}

// StartInjecting asks the daemon to start the preset for the device and
// reports whether it did.
func (c *Client) StartInjecting(device, preset string) (bool, error) {
	resp, err := c.call(request{Method: methodStartInjecting, Device: device, Preset: preset})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

func (c *Client) StopInjecting(device string) error {
	_, err := c.call(request{Method: methodStopInjecting, Device: device})
	return err
}

func (c *Client) StopAll() error {
	_, err := c.call(request{Method: methodStopAll})
	return err
}

func (c *Client) GetState(device string) (injection.State, error) {
	resp, err := c.call(request{Method: methodGetState, Device: device})
	if err != nil {
		return injection.Unknown, err
	}
	return injection.State(resp.State), nil
}

func (c *Client) SetConfigDir(dir string) error {
	_, err := c.call(request{Method: methodSetConfigDir, Dir: dir})
	return err
}

func (c *Client) Autoload() error {
	_, err := c.call(request{Method: methodAutoload})
	return err
}

func (c *Client) AutoloadSingle(devicePath string) error {
	_, err := c.call(request{Method: methodAutoloadSingle, Device: devicePath})
	return err
}
