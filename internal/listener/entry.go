// Owns one transport binding and its receive goroutine, decoding each message and handing it to a delivery sink
package listener

import (
	"context"
	"errors"
	"runtime/debug"
	"statefeed/internal/atomics"
	"statefeed/internal/delivery"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"statefeed/internal/transport"
	"statefeed/pkg/protocol"
	"strings"
	"time"
)

var ErrAlreadyStarted = errors.New("listener already started")

// Creates an idle listener. The sink fixes the delivery policy for the listener's lifetime.
func New(namespace []string, cfg transport.Config, sink delivery.Sink) (new *Instance) {
	new = &Instance{
		Namespace: append(append([]string(nil), namespace...), global.NSListen),
		cfg:       cfg,
		sink:      sink,
		done:      make(chan struct{}),
	}
	new.state.Store(int32(Idle))
	return
}

// Binds the transport and starts the receive goroutine.
// A bind failure is returned directly and leaves the listener Stopped.
// Cancelling ctx has the same effect as Stop.
func (instance *Instance) Start(ctx context.Context) (err error) {
	if !instance.state.CompareAndSwap(int32(Idle), int32(Running)) {
		err = ErrAlreadyStarted
		return
	}
	ctx = logctx.AppendCtxTag(ctx, global.NSListen)

	binding, err := transport.Open(ctx, instance.cfg)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "%v\n", err)
		instance.finish(err)
		return
	}

	instance.mutex.Lock()
	instance.binding = binding
	instance.port = binding.Port()
	instance.mutex.Unlock()

	// Loop start is the first interval baseline
	instance.lastDecoded = time.Now()

	go instance.run(ctx, binding)
	go func() {
		select {
		case <-ctx.Done():
			instance.Stop()
		case <-instance.done:
		}
	}()
	return
}

// Receive goroutine
func (instance *Instance) run(ctx context.Context, binding transport.Binding) {
	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"Listening on %s with %s delivery\n", instance.cfg.String(), instance.sink.Mode())

	err := binding.Run(ctx, instance.stop.Load, instance)
	if binding.ConnectionClosed() {
		instance.connectionClosed.Store(true)
	}
	if errors.Is(err, transport.ErrStreamClosed) {
		err = nil
	}
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Listener stopped: %v\n", err)
	} else {
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "Listener stopped\n")
	}
	instance.finish(err)
}

// Records the terminal error and marks the listener Stopped
func (instance *Instance) finish(err error) {
	instance.doneOnce.Do(func() {
		instance.mutex.Lock()
		instance.err = err
		instance.mutex.Unlock()

		instance.stop.Store(true)
		instance.state.Store(int32(Stopped))
		close(instance.done)
	})
}

// Requests the receive loop to exit at the next poll boundary. Idempotent.
func (instance *Instance) Stop() {
	instance.stop.Store(true)
	if instance.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		return
	}
	// Never started
	if instance.state.CompareAndSwap(int32(Idle), int32(Stopping)) {
		instance.finish(nil)
	}
}

// Blocks until the listener is Stopped and returns the terminal error.
// Requested stops and clean peer hangups return nil.
func (instance *Instance) Wait() (err error) {
	<-instance.done
	err = instance.Err()
	return
}

// Closed once the listener is Stopped
func (instance *Instance) Done() <-chan struct{} {
	return instance.done
}

func (instance *Instance) Err() (err error) {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	err = instance.err
	return
}

// Resolved port (UDP and TCP), 0 before Start or for inherited streams
func (instance *Instance) Port() (port int) {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	port = instance.port
	return
}

func (instance *Instance) State() (state State) {
	state = State(instance.state.Load())
	return
}

// True once any message arrived, including ones that failed to decode
func (instance *Instance) HasReceivedAnyMessage() (received bool) {
	received = instance.hasReceived.Load()
	return
}

// True when a stream peer hung up or the stream failed. Never set by Stop.
func (instance *Instance) ConnectionClosed() (closed bool) {
	closed = instance.connectionClosed.Load()
	return
}

func (instance *Instance) Mode() (mode delivery.Mode) {
	mode = instance.sink.Mode()
	return
}

// Decodes one message and delivers it. Runs on the receive goroutine.
func (instance *Instance) OnMessage(ctx context.Context, payload []byte) {
	start := time.Now()
	defer func() {
		// Record panics and continue receiving
		if fatalError := recover(); fatalError != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic handling message: %v\n%s", fatalError, debug.Stack())
		}
		instance.Metrics.BusyNs.Add(uint64(time.Since(start)))
	}()

	instance.hasReceived.Store(true)
	instance.Metrics.Bytes.Add(uint64(len(payload)))

	doc, err := protocol.Decode(payload)
	decodeNs := uint64(time.Since(start))
	instance.Metrics.DecodeSumNs.Add(decodeNs)
	atomics.StoreMax(&instance.Metrics.DecodeMaxNs, decodeNs)

	if err != nil {
		instance.Metrics.MalformedMessage.Add(1)
		logDecodeFailure(ctx, err)
		return
	}

	receivedAt := time.Now()
	state := delivery.State{
		Document:   doc,
		ReceivedAt: receivedAt,
		Interval:   receivedAt.Sub(instance.lastDecoded),
	}
	instance.lastDecoded = receivedAt

	instance.sink.Deliver(ctx, state)
	instance.Metrics.ValidMessages.Add(1)
}

// Counts frames consumed without decoding
func (instance *Instance) OnSkipped(ctx context.Context, length uint32) {
	if length == 0 {
		instance.Metrics.EmptyFrames.Add(1)
		return
	}
	instance.Metrics.OversizedFrames.Add(1)
}

// Writes the decode error followed by the context window and caret
func logDecodeFailure(ctx context.Context, err error) {
	var decodeErr *protocol.DecodeError
	if !errors.As(err, &decodeErr) {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Failed to decode message: %v\n", err)
		return
	}

	logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Failed to decode JSON: %v\n", decodeErr)
	for _, line := range strings.Split(decodeErr.Diagnostic(), "\n") {
		if line == "" {
			continue
		}
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "%s\n", line)
	}
}
