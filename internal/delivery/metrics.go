package delivery

import (
	"statefeed/internal/metrics"
	"time"
)

func (slot *LiveSlot) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	// Read and clear
	delivered := slot.Metrics.Delivered.Swap(0)
	overwritten := slot.Metrics.Overwritten.Swap(0)
	readerErrors := slot.Metrics.ReaderErrors.Swap(0)

	recordTime := time.Now()

	collection = []metrics.Metric{
		{
			Name:        "delivered_total",
			Description: "States written to the live slot in the interval",
			Namespace:   slot.Namespace,
			Value: metrics.MetricValue{
				Raw:      delivered,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "overwritten_unread_total",
			Description: "States replaced before any reader observed them in the interval",
			Namespace:   slot.Namespace,
			Value: metrics.MetricValue{
				Raw:      overwritten,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "reader_errors_total",
			Description: "State reader failures in the interval",
			Namespace:   slot.Namespace,
			Value: metrics.MetricValue{
				Raw:      readerErrors,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
	}
	return
}

func (queue *Queue) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	pushed := queue.Metrics.Pushed.Swap(0)
	popped := queue.Metrics.Popped.Swap(0)
	depth := uint64(queue.Len())
	maxDepth := queue.Metrics.MaxDepth.Swap(depth)
	if depth > maxDepth {
		maxDepth = depth
	}

	recordTime := time.Now()

	collection = []metrics.Metric{
		{
			Name:        "pushed_total",
			Description: "States appended to the queue in the interval",
			Namespace:   queue.Namespace,
			Value: metrics.MetricValue{
				Raw:      pushed,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "popped_total",
			Description: "States removed by the consumer in the interval",
			Namespace:   queue.Namespace,
			Value: metrics.MetricValue{
				Raw:      popped,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "depth",
			Description: "States waiting for the consumer",
			Namespace:   queue.Namespace,
			Value: metrics.MetricValue{
				Raw:      depth,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Gauge,
			Timestamp: recordTime,
		},
		{
			Name:        "max_depth",
			Description: "Highest queue depth seen in the interval",
			Namespace:   queue.Namespace,
			Value: metrics.MetricValue{
				Raw:      maxDepth,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Summary,
			Timestamp: recordTime,
		},
	}
	return
}
