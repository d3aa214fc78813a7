package logctx

import (
	"statefeed/internal/global"
	"time"
)

// Number of past events retained for GetFormattedLogLines
const historyLimit = 4096

// Logs event
func (logger *Logger) log(eventLevel int, eventSeverity string, tags []string, fullMessage string) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	if eventLevel > logger.PrintLevel && eventSeverity != global.ErrorLog {
		return
	}

	event := Event{
		Timestamp: time.Now(),
		Tags:      tags,
		Severity:  eventSeverity,
		Message:   fullMessage,
	}

	logger.queue = append(logger.queue, event)
	logger.history = append(logger.history, event)
	if len(logger.history) > historyLimit {
		logger.history = logger.history[len(logger.history)-historyLimit:]
	}
	logger.cond.Signal() // Notify watcher that new event is available
}
