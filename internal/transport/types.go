// Transport bindings delivering raw message payloads from UDP, an inherited stream descriptor, or a single TCP client
package transport

import (
	"context"
	"io"
	"statefeed/pkg/protocol"
	"time"
)

type Kind string

const (
	KindUDP Kind = "udp"
	KindFD  Kind = "fd"
	KindTCP Kind = "tcp"
)

// Immutable description of one binding
type Config struct {
	Type          Kind
	Address       string        // UDP bind address
	Port          int           // UDP port, 0 lets the kernel choose
	FD            int           // Inherited stream descriptor
	Announce      io.Writer     // Receives the resolved TCP port line
	PollInterval  time.Duration // Upper bound on every blocking receive
	AcceptTimeout time.Duration // TCP only
}

// Receives everything a binding reads. Called only from the goroutine running the binding.
type Handler interface {
	// Complete message payload. The slice is owned by the handler.
	OnMessage(ctx context.Context, payload []byte)
	// Frame that was consumed without being decoded (empty or oversized)
	OnSkipped(ctx context.Context, length uint32)
}

// Bound transport ready to run its receive loop
type Binding interface {
	// Receive loop. Returns once stop reports true at a poll boundary, the peer goes away, or a fatal error occurs.
	Run(ctx context.Context, stop protocol.StopFunc, handler Handler) (err error)
	Kind() Kind
	Port() int
	// Stream transports only: the peer hung up or the stream failed
	ConnectionClosed() bool
	// Releases the socket. Safe to call more than once and after Run.
	Close() error
}

// Adapter for plain functions
type HandlerFuncs struct {
	Message func(ctx context.Context, payload []byte)
	Skipped func(ctx context.Context, length uint32)
}

func (funcs HandlerFuncs) OnMessage(ctx context.Context, payload []byte) {
	if funcs.Message != nil {
		funcs.Message(ctx, payload)
	}
}

func (funcs HandlerFuncs) OnSkipped(ctx context.Context, length uint32) {
	if funcs.Skipped != nil {
		funcs.Skipped(ctx, length)
	}
}
