package delivery

import (
	"context"
	"statefeed/internal/atomics"
	"statefeed/internal/global"
	"statefeed/internal/logctx"

	"github.com/pbnjay/memory"
)

const (
	stateOverhead  uint64 = 128  // Rough per-entry cost beyond the raw document
	guardEvery     uint64 = 256  // Pushes between free memory checks
	compactionSize int    = 1024 // Consumed head entries before the backing array is shifted
)

// Creates an empty queue
func NewQueue(namespace []string) (new *Queue) {
	new = &Queue{
		Namespace:  append(append([]string(nil), namespace...), global.NSQueue),
		items:      make([]State, 0, 64),
		freeMemory: memory.FreeMemory,
	}
	return
}

func (queue *Queue) Mode() (mode Mode) {
	mode = Buffered
	return
}

// Appends a state at the tail. States are never dropped.
func (queue *Queue) Deliver(ctx context.Context, state State) {
	queue.mutex.Lock()
	queue.items = append(queue.items, state)
	queue.size += uint64(len(state.Document.Raw())) + stateOverhead
	queue.pushes++
	depth := uint64(len(queue.items) - queue.head)
	warn := queue.checkMemory()
	size := queue.size
	queue.mutex.Unlock()

	queue.Metrics.Pushed.Add(1)
	atomics.StoreMax(&queue.Metrics.MaxDepth, depth)

	if warn {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"Buffered states (%d, ~%d bytes) exceed half of free system memory, consumer is falling behind\n", depth, size)
	}
}

// Reports once when the queue grows past half of free memory. Caller holds the mutex.
func (queue *Queue) checkMemory() (warn bool) {
	if queue.freeMemory == nil || queue.pushes%guardEvery != 0 {
		return
	}

	free := queue.freeMemory()
	if free == 0 {
		return
	}
	over := queue.size > free/2
	if over && !queue.warned {
		warn = true
	}
	queue.warned = over
	return
}

// Removes the head state without blocking
func (queue *Queue) Pop() (state State, ok bool) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	if queue.head >= len(queue.items) {
		return
	}

	state = queue.items[queue.head]
	queue.items[queue.head] = State{}
	queue.head++
	ok = true

	used := uint64(len(state.Document.Raw())) + stateOverhead
	if used > queue.size {
		used = queue.size
	}
	queue.size -= used

	if queue.head == len(queue.items) {
		queue.items = queue.items[:0]
		queue.head = 0
	} else if queue.head >= compactionSize && queue.head*2 >= len(queue.items) {
		remaining := copy(queue.items, queue.items[queue.head:])
		clear(queue.items[remaining:])
		queue.items = queue.items[:remaining]
		queue.head = 0
	}

	queue.Metrics.Popped.Add(1)
	return
}

// Number of queued states
func (queue *Queue) Len() (depth int) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	depth = len(queue.items) - queue.head
	return
}
