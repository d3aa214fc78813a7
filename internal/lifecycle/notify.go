// Service manager integration: readiness notification and exit signals
package lifecycle

import (
	"context"
	"fmt"
	"net"
	"os"
	"statefeed/internal/global"
	"statefeed/internal/logctx"

	"golang.org/x/sys/unix"
)

const notifySocketEnv = "NOTIFY_SOCKET"

// Sends READY=1 to systemd to indicate the transport is bound.
func NotifyReady(ctx context.Context) (err error) {
	err = notify(ctx, "READY=1")
	return
}

// Sends STOPPING=1 with a monotonic timestamp to systemd.
func NotifyStopping(ctx context.Context) (err error) {
	var ts unix.Timespec
	err = unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	if err != nil {
		err = fmt.Errorf("failed reading monotonic clock: %w", err)
		return
	}

	usec := ts.Sec*1_000_000 + int64(ts.Nsec)/1_000
	err = notify(ctx, fmt.Sprintf("STOPPING=1\nMONOTONIC_USEC=%d", usec))
	return
}

// Sends custom status message to systemd for context.
func NotifyStatus(ctx context.Context, msg string) (err error) {
	err = notify(ctx, "STATUS="+msg)
	return
}

// Sends a raw sd_notify message.
// If NOTIFY_SOCKET is unset, this is a no-op and returns nil.
func notify(ctx context.Context, msg string) (err error) {
	sockPath := os.Getenv(notifySocketEnv)
	if sockPath == "" {
		// Not running under systemd
		return
	}

	addr := &net.UnixAddr{
		Name: sockPath,
		Net:  "unixgram",
	}

	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		err = fmt.Errorf("notify dial failed: %w", err)
		return
	}
	defer conn.Close()

	_, err = conn.Write([]byte(msg))
	if err != nil {
		err = fmt.Errorf("notify write failed: %w", err)
		return
	}

	logctx.LogEvent(ctx, global.VerbosityDebug, global.InfoLog, "Notified service manager with message '%s'\n", msg)
	return
}
