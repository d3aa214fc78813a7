// Hands decoded states to consumers, either overwriting a single live slot or queueing every state in order
package delivery

import (
	"context"
	"statefeed/pkg/protocol"
	"sync"
	"sync/atomic"
	"time"
)

type Mode string

const (
	Live     Mode = "live"
	Buffered Mode = "buffered"
)

// One decoded snapshot
type State struct {
	Document   protocol.Document
	ReceivedAt time.Time
	Interval   time.Duration // Since the previous successfully decoded state
}

// Destination for decoded states. Deliver is only called from the listener goroutine.
type Sink interface {
	Deliver(ctx context.Context, state State)
	Mode() Mode
}

// Applies a document to a consumer-owned state object.
// Called while the live slot mutex is held.
type StateReader interface {
	ReadState(doc protocol.Document) (err error)
}

// Adapter for plain functions
type StateReaderFunc func(doc protocol.Document) error

func (fn StateReaderFunc) ReadState(doc protocol.Document) (err error) {
	err = fn(doc)
	return
}

// Single slot holding the most recent state
type LiveSlot struct {
	Namespace []string
	mutex     sync.Mutex
	state     State
	present   bool
	reader    StateReader
	Metrics   LiveMetrics
}

// Unbounded FIFO of states with a single consumer
type Queue struct {
	Namespace  []string
	mutex      sync.Mutex
	items      []State
	head       int
	size       uint64 // Estimated bytes held
	pushes     uint64
	warned     bool
	freeMemory func() uint64
	Metrics    QueueMetrics
}

type LiveMetrics struct {
	Delivered    atomic.Uint64 // states written to the slot
	Overwritten  atomic.Uint64 // states replaced before any reader saw them
	ReaderErrors atomic.Uint64 // state reader failures and panics
	read         atomic.Bool   // current state was observed by a reader
}

type QueueMetrics struct {
	Pushed   atomic.Uint64
	Popped   atomic.Uint64
	MaxDepth atomic.Uint64 // highest depth seen in the interval
}
