// Drains buffered states in order and records each one to the configured outputs
package recorder

import (
	"context"
	"runtime/debug"
	"statefeed/internal/delivery"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"time"
)

const (
	idleWait      = 5 * time.Millisecond
	flushInterval = 500 * time.Millisecond
)

// Creates new recorder over the queue
func New(namespace []string, inbox *delivery.Queue, fps int) (new *Instance) {
	if fps <= 0 {
		fps = global.DefaultRecordFPS
	}
	new = &Instance{
		Namespace: append(append([]string(nil), namespace...), global.NSRecord),
		Inbox:     inbox,
		pacer:     NewPacer(fps),
	}
	return
}

// Records states until ctx is cancelled, then drains what is left and flushes outputs
func (instance *Instance) Run(ctx context.Context) {
	ctx = logctx.AppendCtxTag(ctx, global.NSRecord)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		instance.Drain(ctx)

		select {
		case <-ctx.Done():
			instance.Drain(ctx)
			instance.flush(ctx)
			return
		case <-ticker.C:
			// Periodic flush of file output buffer
			// Buffer might never fill and flush if states arrive slowly
			instance.flush(ctx)
		case <-time.After(idleWait):
		}
	}
}

// Records every queued state. Returns how many states were popped.
func (instance *Instance) Drain(ctx context.Context) (popped int) {
	for {
		state, ok := instance.Inbox.Pop()
		if !ok {
			return
		}
		popped++
		instance.record(ctx, state)
	}
}

// Writes one state to all outputs
func (instance *Instance) record(ctx context.Context, state delivery.State) {
	// Record panics and continue recording
	defer func() {
		if fatalError := recover(); fatalError != nil {
			stack := debug.Stack()
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic in recorder: %v\n%s", fatalError, stack)
		}
	}()

	if !instance.tracker.HasNew(state.ReceivedAt) {
		instance.Metrics.SkippedDuplicates.Add(1)
		return
	}
	frames := instance.pacer.Frames(state.Interval)

	n, err := instance.FileMod.Write(state, frames)
	if err != nil {
		instance.Metrics.WriteErrors.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"Failed to write state(s) to file output: %v\n", err)
	}
	instance.Metrics.FileWrites.Add(uint64(n))

	n, err = instance.BeatsMod.Write(state, frames)
	if err != nil {
		instance.Metrics.WriteErrors.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"Failed to write state to beats output: %v\n", err)
	}
	instance.Metrics.BeatsWrites.Add(uint64(n))

	instance.mutex.Lock()
	instance.totals.States++
	instance.totals.Frames += uint64(frames)
	instance.totals.Duration += state.Interval
	instance.mutex.Unlock()

	instance.Metrics.Recorded.Add(1)
	instance.Metrics.Frames.Add(uint64(frames))
	logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog,
		"Recorded state (interval %s, %d frames)\n", state.Interval, frames)
}

func (instance *Instance) flush(ctx context.Context) {
	n, err := instance.FileMod.FlushBuffer()
	if err != nil {
		instance.Metrics.WriteErrors.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"Failed to flush file output: %v\n", err)
	}
	instance.Metrics.FileWrites.Add(uint64(n))
}

// Snapshot of everything recorded so far
func (instance *Instance) Totals() (totals Totals) {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	totals = instance.totals
	return
}

// Flushes and closes all outputs, logging the totals
func (instance *Instance) Shutdown(ctx context.Context) (err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSRecord)

	err = instance.FileMod.Shutdown()
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Failed to close file output: %v\n", err)
	}
	beatsErr := instance.BeatsMod.Shutdown()
	if beatsErr != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Failed to close beats output: %v\n", beatsErr)
		if err == nil {
			err = beatsErr
		}
	}

	totals := instance.Totals()
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"Recorded %d states, %d frames, %s of game time\n", totals.States, totals.Frames, totals.Duration)
	return
}
