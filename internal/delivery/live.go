package delivery

import (
	"context"
	"fmt"
	"runtime/debug"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
)

// Creates an empty slot. reader may be nil.
func NewLiveSlot(namespace []string, reader StateReader) (new *LiveSlot) {
	new = &LiveSlot{
		Namespace: append(append([]string(nil), namespace...), global.NSLive),
		reader:    reader,
	}
	return
}

func (slot *LiveSlot) Mode() (mode Mode) {
	mode = Live
	return
}

// Overwrites the slot with the newest state and applies it to the state reader under the same lock
func (slot *LiveSlot) Deliver(ctx context.Context, state State) {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()

	err := slot.applyReader(state)
	if err != nil {
		slot.Metrics.ReaderErrors.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "%v\n", err)
	}

	if slot.present && !slot.Metrics.read.Load() {
		slot.Metrics.Overwritten.Add(1)
	}
	slot.state = state
	slot.present = true
	slot.Metrics.read.Store(false)
	slot.Metrics.Delivered.Add(1)
}

// Runs the external reader, converting panics to errors
func (slot *LiveSlot) applyReader(state State) (err error) {
	if slot.reader == nil {
		return
	}

	defer func() {
		if fatalError := recover(); fatalError != nil {
			err = fmt.Errorf("panic in state reader: %v\n%s", fatalError, debug.Stack())
		}
	}()

	err = slot.reader.ReadState(state.Document)
	if err != nil {
		err = fmt.Errorf("state reader rejected document: %w", err)
	}
	return
}

// Copy of the most recent state
func (slot *LiveSlot) Latest() (state State, ok bool) {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()

	state = slot.state
	ok = slot.present
	if ok {
		slot.Metrics.read.Store(true)
	}
	return
}

// Runs fn with the slot locked
func (slot *LiveSlot) View(fn func(state State, ok bool)) {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()

	if slot.present {
		slot.Metrics.read.Store(true)
	}
	fn(slot.state, slot.present)
}

// Holds the slot mutex, blocking delivery, until Unlock.
// For render loops reading the state reader's object directly.
func (slot *LiveSlot) Lock() {
	slot.mutex.Lock()
}

func (slot *LiveSlot) Unlock() {
	slot.mutex.Unlock()
}

// Empties the slot at teardown
func (slot *LiveSlot) Clear() {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()

	slot.state = State{}
	slot.present = false
}
