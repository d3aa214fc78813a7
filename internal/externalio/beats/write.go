package beats

import (
	"fmt"
	"os"
	"statefeed/internal/delivery"
	"statefeed/internal/global"
)

// Sends one recorded state and its metadata to the configured beats server
func (mod *OutModule) Write(state delivery.State, frames int) (eventsSent int, err error) {
	if mod == nil {
		return
	}

	event := map[string]interface{}{
		// Minimum required fields
		"@timestamp": state.ReceivedAt,
		"message":    string(state.Document.Compact()),

		"event": map[string]interface{}{
			"kind":     "state",
			"duration": state.Interval.Nanoseconds(),
		},
		"statefeed": map[string]interface{}{
			"frames": frames,
			"state":  state.Document.Value(),
		},
		"agent": map[string]interface{}{
			"program": global.ProgBaseName,
			"version": global.ProgVersion,
			"type":    "filebeat",
			"pid":     os.Getpid(),
		},
	}
	events := []interface{}{event}

	// One reconnect per write when the previous connection was lost
	if mod.sink == nil {
		err = mod.dial()
		if err != nil {
			return
		}
	}

	eventsSent, err = mod.sink.Send(events)
	if err != nil {
		mod.sink.Close()
		mod.sink = nil
		err = fmt.Errorf("failed sending state to beats server: %w", err)
		return
	}
	return
}
