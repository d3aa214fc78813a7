package file

import (
	"encoding/json"
	"fmt"
	"statefeed/internal/delivery"
	"time"
)

// Builds the recorded line for one state
func NewRecord(state delivery.State, frames int) (record Record) {
	record = Record{
		ReceivedAt: state.ReceivedAt.UTC().Format(time.RFC3339Nano),
		IntervalNs: state.Interval.Nanoseconds(),
		Frames:     frames,
		State:      json.RawMessage(state.Document.Compact()),
	}
	return
}

// Writes one state as a JSON line. Lines are buffered and flushed in batches.
func (mod *OutModule) Write(state delivery.State, frames int) (linesWritten int, err error) {
	if mod == nil {
		return
	}

	line, err := json.Marshal(NewRecord(state, frames))
	if err != nil {
		err = fmt.Errorf("failed to encode record: %w", err)
		return
	}
	line = append(line, '\n')

	*mod.batchBuffer = append(*mod.batchBuffer, line)

	if len(*mod.batchBuffer) >= mod.batchSize {
		linesWritten, err = mod.FlushBuffer()
		if err != nil {
			return
		}
	}
	return
}

// Flushes line buffer to the file, preserving arrival order
func (mod *OutModule) FlushBuffer() (flushedCnt int, err error) {
	if mod == nil || mod.batchBuffer == nil {
		return
	}

	for _, line := range *mod.batchBuffer {
		data := line
		for len(data) > 0 {
			var n int
			n, err = mod.sink.Write(data)
			data = data[n:] // remove the bytes that were successfully written
			if err != nil {
				// Keep only what is still unwritten so the next flush resumes mid-line
				*mod.batchBuffer = (*mod.batchBuffer)[flushedCnt:]
				(*mod.batchBuffer)[0] = data
				err = fmt.Errorf("failed writing recording file: %w", err)
				return
			}
		}
		flushedCnt++
	}

	// All writes succeeded, empty buffer
	*mod.batchBuffer = (*mod.batchBuffer)[:0]

	if sink, ok := mod.sink.(flusher); ok {
		err = sink.Flush()
		if err != nil {
			err = fmt.Errorf("failed flushing recording file: %w", err)
			return
		}
	}
	return
}
