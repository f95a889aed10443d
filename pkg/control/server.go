package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/TRPB/key-mapper/pkg/daemon"
)

// ErrAlreadyRunning means another daemon instance owns the control socket.
// Fatal at startup; two daemons must never coexist.
var ErrAlreadyRunning = errors.New("the control socket is already owned by a running daemon")

type Server struct {
	listener net.Listener
	daemon   *daemon.Daemon
	log      *zap.SugaredLogger
}

// Listen claims the control socket. A leftover socket file of a crashed
// daemon is removed; a socket with a live daemon behind it returns
// ErrAlreadyRunning.
func Listen(socketPath string, d *daemon.Daemon, log *zap.SugaredLogger) (*Server, error) {
	if _, err := os.Stat(socketPath); err == nil {
		conn, err := net.DialTimeout("unix", socketPath, time.Second)
		if err == nil {
			conn.Close()
			return nil, ErrAlreadyRunning
		}
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
		log.Debugf("removed stale socket %q", socketPath)
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	if err := os.Chmod(socketPath, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	return &Server{listener: listener, daemon: d, log: log}, nil
}

// Serve accepts connections until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var req request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.log.Debugf("bad request: %v", err)
		return
	}

	resp := s.dispatch(req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Debugf("write response: %v", err)
	}
}

func (s *Server) dispatch(req request) response {
	switch req.Method {
	case methodStopInjecting:
		s.daemon.StopInjecting(req.Device)
		return response{OK: true}
	case methodGetState:
		return response{OK: true, State: int(s.daemon.GetState(req.Device))}
	case methodStartInjecting:
		return response{OK: s.daemon.StartInjecting(req.Device, req.Preset)}
	case methodStopAll:
		s.daemon.StopAll()
		return response{OK: true}
	case methodSetConfigDir:
		s.daemon.SetConfigDir(req.Dir)
		return response{OK: true}
	case methodAutoload:
		s.daemon.Autoload()
		return response{OK: true}
	case methodAutoloadSingle:
		s.daemon.AutoloadSingle(req.Device)
		return response{OK: true}
	case methodHello:
		return response{OK: true, Echo: s.daemon.Hello(req.Echo)}
	default:
		s.log.Debugf("unknown method %q", req.Method)
		return response{OK: false}
	}
}
