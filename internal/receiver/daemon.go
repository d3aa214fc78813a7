// Daemon wiring one listener to its delivery policy, consumer, metrics, and service manager
package receiver

import (
	"context"
	"fmt"
	"net/http"
	"statefeed/internal/delivery"
	"statefeed/internal/externalio/beats"
	"statefeed/internal/externalio/file"
	"statefeed/internal/externalio/server"
	"statefeed/internal/global"
	"statefeed/internal/lifecycle"
	"statefeed/internal/listener"
	"statefeed/internal/logctx"
	"statefeed/internal/metrics"
	"statefeed/internal/monitor"
	"statefeed/internal/recorder"
	"time"
)

// Create new receiver daemon instance
func NewDaemon(cfg Config) (new *Daemon) {
	cfg.setDefaults()
	new = &Daemon{
		cfg: cfg,
	}
	return
}

// Binds the transport and starts all workers in the background.
// A bind failure is returned and nothing is left running. Cancelling globalCtx shuts the daemon down.
func (daemon *Daemon) Start(globalCtx context.Context) (err error) {
	// New context for the daemon
	daemon.ctx, daemon.cancel = context.WithCancel(context.Background())
	daemon.ctx = logctx.WithLogger(daemon.ctx, logctx.GetLogger(globalCtx))
	daemon.ctx = logctx.OverwriteCtxTag(daemon.ctx, logctx.GetTagList(globalCtx))

	logctx.LogEvent(daemon.ctx, global.VerbosityProgress, global.InfoLog, "Starting...\n")

	// Consumer side first so no state is delivered before it exists
	var sink delivery.Sink
	var collectors []metrics.Collector
	switch daemon.cfg.Mode {
	case delivery.Buffered:
		daemon.Queue = delivery.NewQueue(nil)
		sink = daemon.Queue
		collectors = append(collectors, daemon.Queue)

		err = daemon.startRecorder()
		if err != nil {
			daemon.cancel()
			return
		}
		collectors = append(collectors, daemon.Recorder)
	default:
		daemon.Slot = delivery.NewLiveSlot(nil, daemon.cfg.StateReader)
		sink = daemon.Slot
		collectors = append(collectors, daemon.Slot)

		if daemon.cfg.MonitorEnabled {
			daemon.Monitor = monitor.New(nil, daemon.Slot, daemon.cfg.MonitorFields,
				daemon.cfg.MonitorRefresh, daemon.cfg.MonitorOutput)
			daemon.spawn(daemon.Monitor.Run)
		}
	}

	daemon.Listener = listener.New(nil, daemon.cfg.Transport, sink)
	err = daemon.Listener.Start(daemon.ctx)
	if err != nil {
		daemon.cancel()
		daemon.wg.Wait()
		if daemon.Recorder != nil {
			daemon.Recorder.Shutdown(daemon.ctx)
		}
		return
	}
	collectors = append([]metrics.Collector{daemon.Listener}, collectors...)

	// Metrics Collector
	daemon.Gatherer = metrics.NewGatherer(daemon.cfg.MetricCollectionInterval, daemon.cfg.MetricMaxAge, collectors...)
	daemon.spawn(daemon.Gatherer.Run)

	// Metric Server
	if daemon.cfg.MetricQueryServerEnabled {
		daemon.MetricServer, err = server.SetupListener(daemon.ctx, daemon.cfg.MetricQueryServerPort, daemon.Gatherer.Registry)
		if err != nil {
			err = fmt.Errorf("failed setting up metric server: %w", err)
			daemon.Shutdown()
			return
		}
		metricServer := daemon.MetricServer
		daemon.spawn(func(ctx context.Context) {
			server.Start(ctx, metricServer)
		})
	}

	err = lifecycle.NotifyReady(daemon.ctx)
	if err != nil {
		logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.WarnLog, "Service manager notify failed: %v\n", err)
		err = nil
	}

	// Caller cancellation goes through the ordered shutdown
	go func() {
		select {
		case <-globalCtx.Done():
			daemon.Shutdown()
		case <-daemon.ctx.Done():
		}
	}()

	logctx.LogEvent(daemon.ctx, global.VerbosityStandard, global.InfoLog, "Startup complete.\n")
	return
}

// Opens recording outputs and starts the queue consumer
func (daemon *Daemon) startRecorder() (err error) {
	daemon.Recorder = recorder.New(nil, daemon.Queue, daemon.cfg.RecordFPS)

	daemon.Recorder.FileMod, err = file.NewOutput(daemon.cfg.RecordFilePath)
	if err != nil {
		err = fmt.Errorf("failed starting file output: %w", err)
		return
	}
	daemon.Recorder.BeatsMod, err = beats.NewOutput(daemon.cfg.BeatsEndpoint)
	if err != nil {
		daemon.Recorder.FileMod.Shutdown()
		err = fmt.Errorf("failed starting beats output: %w", err)
		return
	}

	daemon.spawn(daemon.Recorder.Run)
	return
}

// Runs fn on its own goroutine tracked by the daemon wait group
func (daemon *Daemon) spawn(fn func(ctx context.Context)) {
	workerCtx := daemon.ctx
	daemon.wg.Add(1)
	go func() {
		defer daemon.wg.Done()
		fn(workerCtx)
	}()
}

// Blocks until the listener stops on its own or the daemon is shut down.
// Returns the listener's terminal error.
func (daemon *Daemon) Run() (err error) {
	select {
	case <-daemon.Listener.Done():
	case <-daemon.ctx.Done():
	}
	daemon.Shutdown()
	err = daemon.Listener.Err()
	return
}

// Gracefully stops the listener first, then consumers once everything queued is handled
func (daemon *Daemon) Shutdown() {
	daemon.shutdownOnce.Do(daemon.shutdown)
}

func (daemon *Daemon) shutdown() {
	ctx := daemon.ctx
	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "Daemon shutdown started...\n")

	err := lifecycle.NotifyStopping(ctx)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "Service manager notify failed: %v\n", err)
	}

	// Stop ingestion
	if daemon.Listener != nil {
		daemon.Listener.Stop()
		select {
		case <-daemon.Listener.Done():
		case <-time.After(global.StopTimeout):
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"Listener did not stop within %s\n", global.StopTimeout)
		}
	}

	// Stop metric server
	if daemon.MetricServer != nil {
		err = daemon.MetricServer.Shutdown(ctx)
		if err != nil && err != http.ErrServerClosed {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"metric HTTP server did not shutdown gracefully: %v\n", err)
		}
	}

	// Stop workers (recorder drains the queue on cancellation)
	daemon.cancel()

	done := make(chan struct{})
	go func() {
		daemon.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(global.StopTimeout):
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"Timeout: workers did not finish within %s\n", global.StopTimeout)
	}

	if daemon.Recorder != nil {
		daemon.Recorder.Shutdown(ctx)
	}
	if daemon.Slot != nil {
		daemon.Slot.Clear()
	}

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "Daemon shutdown completed\n")
}
