package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"statefeed/pkg/protocol"
	"sync"
	"sync/atomic"
	"time"
)

// Length-prefixed stream over an already connected socket
type streamBinding struct {
	kind      Kind
	conn      net.Conn
	poll      time.Duration
	closed    atomic.Bool // Peer hung up or the stream failed
	closeOnce sync.Once
	closeErr  error
}

func newStreamBinding(kind Kind, conn net.Conn, cfg Config) (new *streamBinding) {
	new = &streamBinding{
		kind: kind,
		conn: conn,
		poll: cfg.PollInterval,
	}
	return
}

func (binding *streamBinding) Kind() Kind             { return binding.kind }
func (binding *streamBinding) Port() int              { return 0 }
func (binding *streamBinding) ConnectionClosed() bool { return binding.closed.Load() }

func (binding *streamBinding) Close() (err error) {
	binding.closeOnce.Do(func() {
		binding.closeErr = binding.conn.Close()
	})
	err = binding.closeErr
	return
}

func (binding *streamBinding) Run(ctx context.Context, stop protocol.StopFunc, handler Handler) (err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSStream)
	defer binding.Close()

	err = readStream(ctx, binding.conn, binding.poll, stop, handler)
	if err != nil {
		binding.closed.Store(true)
	}
	return
}

// Shared frame loop for every stream transport.
// Returns nil on a requested stop, ErrStreamClosed when the peer hangs up between frames,
// and the failure otherwise.
func readStream(ctx context.Context, stream protocol.Stream, poll time.Duration, stop protocol.StopFunc, handler Handler) (err error) {
	for {
		if stop != nil && stop() {
			return
		}

		var payload []byte
		payload, err = protocol.ReadFrame(stream, poll, stop)

		var oversized *protocol.OversizedError
		switch {
		case err == nil && len(payload) == 0:
			handler.OnSkipped(ctx, 0)
			continue
		case err == nil:
			handler.OnMessage(ctx, payload)
			continue
		case errors.As(err, &oversized):
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"Message too large (%d bytes), skipping\n", oversized.Length)
			handler.OnSkipped(ctx, oversized.Length)
			err = nil
			continue
		case errors.Is(err, protocol.ErrStopped):
			err = nil
			return
		case errors.Is(err, protocol.ErrPeerClosed):
			logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Connection closed by peer\n")
			err = ErrStreamClosed
			return
		case errors.Is(err, protocol.ErrTruncatedFrame):
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Connection closed in the middle of a message\n")
			return
		default:
			err = fmt.Errorf("stream read failed: %w", err)
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "%v\n", err)
			return
		}
	}
}
