package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"statefeed/internal/network"
	"statefeed/pkg/protocol"
	"sync"
	"sync/atomic"
	"time"
)

// Loopback listener accepting exactly one client, then reading frames from it
type tcpBinding struct {
	listener      *net.TCPListener
	conn          net.Conn
	port          int
	poll          time.Duration
	acceptTimeout time.Duration
	closed        atomic.Bool
	mutex         sync.Mutex
}

func newTCPBinding(listener *net.TCPListener, cfg Config) (new *tcpBinding) {
	new = &tcpBinding{
		listener:      listener,
		poll:          cfg.PollInterval,
		acceptTimeout: cfg.AcceptTimeout,
	}
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		new.port = addr.Port
	}
	return
}

func (binding *tcpBinding) Kind() Kind             { return KindTCP }
func (binding *tcpBinding) Port() int              { return binding.port }
func (binding *tcpBinding) ConnectionClosed() bool { return binding.closed.Load() }

func (binding *tcpBinding) Close() (err error) {
	binding.mutex.Lock()
	defer binding.mutex.Unlock()

	if binding.listener != nil {
		err = binding.listener.Close()
		binding.listener = nil
	}
	if binding.conn != nil {
		connErr := binding.conn.Close()
		if err == nil {
			err = connErr
		}
		binding.conn = nil
	}
	return
}

func (binding *tcpBinding) Run(ctx context.Context, stop protocol.StopFunc, handler Handler) (err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSTCP)
	defer binding.Close()

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"Waiting for client on 127.0.0.1:%d\n", binding.port)

	conn, err := binding.accept(stop)
	if err != nil {
		if errors.Is(err, protocol.ErrStopped) {
			err = nil
			return
		}
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "%v\n", err)
		return
	}
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"Client connected from %s\n", conn.RemoteAddr())

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		size, bufErr := network.SetReceiveBuffer(tcpConn, global.StreamReceiveBuffer)
		if bufErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "%v\n", bufErr)
		} else {
			logctx.LogEvent(ctx, global.VerbosityDebug, global.InfoLog, "Receive buffer is %d bytes\n", size)
		}
	}

	err = readStream(ctx, conn, binding.poll, stop, handler)
	if err != nil {
		binding.closed.Store(true)
	}
	return
}

// Waits for the single client. The listening socket is closed once a client is accepted.
// Stop is honoured at every poll boundary; the overall deadline is not retried.
func (binding *tcpBinding) accept(stop protocol.StopFunc) (conn net.Conn, err error) {
	binding.mutex.Lock()
	listener := binding.listener
	binding.mutex.Unlock()
	if listener == nil {
		err = fmt.Errorf("accept on closed listener: %w", net.ErrClosed)
		return
	}

	deadline := time.Now().Add(binding.acceptTimeout)
	for {
		if stop != nil && stop() {
			err = protocol.ErrStopped
			return
		}

		wait := time.Now().Add(binding.poll)
		if wait.After(deadline) {
			wait = deadline
		}
		err = listener.SetDeadline(wait)
		if err != nil {
			err = fmt.Errorf("failed to set accept deadline: %w", err)
			return
		}

		conn, err = listener.Accept()
		if err == nil {
			break
		}
		if !protocol.IsTimeout(err) {
			if errors.Is(err, net.ErrClosed) && stop != nil && stop() {
				err = protocol.ErrStopped
				return
			}
			err = fmt.Errorf("accept failed: %w", err)
			return
		}
		if !time.Now().Before(deadline) {
			err = fmt.Errorf("%w (%s)", ErrAcceptTimeout, binding.acceptTimeout)
			return
		}
	}

	binding.mutex.Lock()
	binding.listener = nil
	binding.conn = conn
	binding.mutex.Unlock()

	// Exactly one client is served
	listener.Close()
	return
}
