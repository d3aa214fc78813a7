package listener

import (
	"statefeed/internal/delivery"
	"statefeed/internal/transport"
	"sync"
	"sync/atomic"
	"time"
)

// Lifecycle of one listener
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (state State) String() string {
	switch state {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Instance struct {
	Namespace        []string
	cfg              transport.Config
	sink             delivery.Sink
	binding          transport.Binding
	port             int
	state            atomic.Int32
	stop             atomic.Bool // Observed by the receive loop at every poll boundary
	hasReceived      atomic.Bool
	connectionClosed atomic.Bool
	lastDecoded      time.Time // Interval baseline, only touched by the receive goroutine
	done             chan struct{}
	doneOnce         sync.Once
	mutex            sync.Mutex
	err              error // Terminal error
	Metrics          MetricStorage
}

type MetricStorage struct {
	BusyNs           atomic.Uint64 // sum of ns spent handling messages
	ValidMessages    atomic.Uint64 // decoded and delivered
	MalformedMessage atomic.Uint64 // failed to decode
	OversizedFrames  atomic.Uint64 // drained without decoding
	EmptyFrames      atomic.Uint64 // zero length frames
	Bytes            atomic.Uint64 // payload bytes handed to the decoder
	DecodeSumNs      atomic.Uint64
	DecodeMaxNs      atomic.Uint64
}
