package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"statefeed/internal/network"
	"strconv"
)

// Resolves and binds the configured transport.
// For TCP the resolved port is announced before returning; accept happens in Run.
func Open(ctx context.Context, cfg Config) (binding Binding, err error) {
	cfg.setDefaults()
	err = cfg.Validate()
	if err != nil {
		return
	}

	switch cfg.Type {
	case KindUDP:
		var conn *net.UDPConn
		conn, err = network.ListenUDP(ctx, cfg.Address, cfg.Port)
		if err != nil {
			err = &BindError{Transport: cfg.Type, Address: cfg.String(), Err: err}
			return
		}
		binding = newUDPBinding(conn, cfg)
	case KindFD:
		var conn net.Conn
		conn, err = network.AdoptStreamFD(cfg.FD)
		if err != nil {
			err = &BindError{Transport: cfg.Type, Address: cfg.String(), Err: err}
			return
		}
		binding = newStreamBinding(KindFD, conn, cfg)
	case KindTCP:
		var listener *net.TCPListener
		listener, err = network.ListenLoopbackTCP(1)
		if err != nil {
			err = &BindError{Transport: cfg.Type, Address: cfg.String(), Err: err}
			return
		}
		tcp := newTCPBinding(listener, cfg)

		err = announcePort(cfg.Announce, tcp.Port())
		if err != nil {
			tcp.Close()
			err = &BindError{Transport: cfg.Type, Address: cfg.String(), Err: err}
			return
		}
		binding = tcp
	}

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"Bound %s transport (port %d)\n", cfg.Type, binding.Port())
	return
}

// Writes exactly one port line for the parent process
func announcePort(w io.Writer, port int) (err error) {
	if w == nil {
		return
	}
	_, err = io.WriteString(w, global.TCPPortPrefix+strconv.Itoa(port)+"\n")
	if err != nil {
		err = fmt.Errorf("failed to announce tcp port: %w", err)
		return
	}
	if flusher, ok := w.(interface{ Sync() error }); ok {
		flusher.Sync()
	}
	return
}
