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
	"time"
)

// Datagram binding, one message per datagram
type udpBinding struct {
	conn      *net.UDPConn
	poll      time.Duration
	port      int
	closeOnce sync.Once
	closeErr  error
}

func newUDPBinding(conn *net.UDPConn, cfg Config) (new *udpBinding) {
	new = &udpBinding{
		conn: conn,
		poll: cfg.PollInterval,
	}
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		new.port = addr.Port
	}
	return
}

func (binding *udpBinding) Kind() Kind             { return KindUDP }
func (binding *udpBinding) Port() int              { return binding.port }
func (binding *udpBinding) ConnectionClosed() bool { return false }

func (binding *udpBinding) Close() (err error) {
	binding.closeOnce.Do(func() {
		binding.closeErr = binding.conn.Close()
	})
	err = binding.closeErr
	return
}

func (binding *udpBinding) Run(ctx context.Context, stop protocol.StopFunc, handler Handler) (err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSUDP)
	defer binding.Close()

	buffer := make([]byte, protocol.MaxMessageLen)
	for {
		if stop != nil && stop() {
			binding.logUnread(ctx)
			return
		}

		err = binding.conn.SetReadDeadline(time.Now().Add(binding.poll))
		if err != nil {
			err = fmt.Errorf("failed to set read deadline: %w", err)
			return
		}

		var n int
		n, _, err = binding.conn.ReadFromUDP(buffer)
		if err != nil {
			if protocol.IsTimeout(err) {
				err = nil
				continue
			}
			if errors.Is(err, net.ErrClosed) && stop != nil && stop() {
				err = nil
				return
			}
			err = fmt.Errorf("failed reading datagram: %w", err)
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "%v\n", err)
			return
		}

		payload := append([]byte(nil), buffer[:n]...)
		handler.OnMessage(ctx, payload)
	}
}

// Reports datagrams left in the kernel queue at shutdown
func (binding *udpBinding) logUnread(ctx context.Context) {
	queued, err := network.UnreadBytes(binding.conn)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityDebug, global.WarnLog, "%v\n", err)
		return
	}
	if queued > 0 {
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
			"Stopping with %d unread bytes in socket buffer\n", queued)
	}
}
