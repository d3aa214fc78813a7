package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"syscall"
)

type DaemonLike interface {
	Shutdown()
}

// Waits for an exit signal or ctx cancellation, then shuts the daemon down.
// Returns the received signal, nil when ctx ended first.
func SignalHandler(ctx context.Context, daemon DaemonLike) (received os.Signal) {
	// Channel for handling interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return
	case received = <-sigChan:
	}

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Received signal: %v\n", received)
	daemon.Shutdown()
	return
}
