package metrics

import (
	"context"
	"runtime/debug"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"time"
)

// Periodically reads collectors into a registry
type Gatherer struct {
	Interval   time.Duration // Recording interval
	Retention  time.Duration // Maximum time to maintain metrics for
	Registry   *Registry
	collectors []Collector
}

// Creates a gatherer over the given collectors
func NewGatherer(interval, retention time.Duration, collectors ...Collector) (new *Gatherer) {
	if interval <= 0 {
		interval = global.DefaultMetricInterval
	}
	if retention <= 0 {
		retention = global.DefaultMetricRetention
	}
	new = &Gatherer{
		Interval:   interval,
		Retention:  retention,
		Registry:   New(),
		collectors: collectors,
	}
	return
}

// Blocks collecting every interval until ctx is cancelled
func (gatherer *Gatherer) Run(ctx context.Context) {
	ctx = logctx.AppendCtxTag(ctx, global.NSMetric)

	ticker := time.NewTicker(gatherer.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			gatherer.Collect(ctx, now)
			gatherer.Registry.Prune(now, gatherer.Retention)
		}
	}
}

// Reads all collectors once
func (gatherer *Gatherer) Collect(ctx context.Context, now time.Time) {
	// Record panics and continue on next interval
	defer func() {
		if fatalError := recover(); fatalError != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic in metric collector: %v\n%s", fatalError, debug.Stack())
		}
	}()

	for _, collector := range gatherer.collectors {
		if collector == nil {
			continue
		}
		gatherer.Registry.Add(now, gatherer.Interval, collector.CollectMetrics(gatherer.Interval))
	}
}
