package listener

import (
	"statefeed/internal/metrics"
	"time"
)

func (instance *Instance) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	// Read and clear
	busyNs := instance.Metrics.BusyNs.Swap(0)
	valid := instance.Metrics.ValidMessages.Swap(0)
	malformed := instance.Metrics.MalformedMessage.Swap(0)
	oversized := instance.Metrics.OversizedFrames.Swap(0)
	empty := instance.Metrics.EmptyFrames.Swap(0)
	bytes := instance.Metrics.Bytes.Swap(0)
	sumNs := instance.Metrics.DecodeSumNs.Swap(0)
	maxNs := instance.Metrics.DecodeMaxNs.Swap(0)

	// Record read time
	recordTime := time.Now()

	// Percent receive goroutine was busy
	busyPct := (float64(busyNs) / float64(interval.Nanoseconds())) * 100

	decoded := valid + malformed
	var avgNs uint64
	if decoded > 0 {
		avgNs = sumNs / decoded
	}

	collection = []metrics.Metric{
		{
			Name:        "busy_time_percent",
			Description: "Total time spent handling messages in the interval",
			Namespace:   instance.Namespace,
			Value: metrics.MetricValue{
				Raw:      busyPct,
				Unit:     "%",
				Interval: interval,
			},
			Type:      metrics.Summary,
			Timestamp: recordTime,
		},
		{
			Name:        "valid_messages_total",
			Description: "Messages decoded and delivered in the interval",
			Namespace:   instance.Namespace,
			Value: metrics.MetricValue{
				Raw:      valid,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "malformed_messages_total",
			Description: "Messages that failed to decode in the interval",
			Namespace:   instance.Namespace,
			Value: metrics.MetricValue{
				Raw:      malformed,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "oversized_frames_total",
			Description: "Frames above the size limit drained in the interval",
			Namespace:   instance.Namespace,
			Value: metrics.MetricValue{
				Raw:      oversized,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "empty_frames_total",
			Description: "Zero length frames skipped in the interval",
			Namespace:   instance.Namespace,
			Value: metrics.MetricValue{
				Raw:      empty,
				Unit:     "count",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "received_bytes_total",
			Description: "Payload bytes handed to the decoder in the interval",
			Namespace:   instance.Namespace,
			Value: metrics.MetricValue{
				Raw:      bytes,
				Unit:     "bytes",
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		},
		{
			Name:        "decode_time_avg_ns",
			Description: "Average time spent decoding a message in the interval",
			Namespace:   instance.Namespace,
			Value: metrics.MetricValue{
				Raw:      avgNs,
				Unit:     "ns",
				Interval: interval,
			},
			Type:      metrics.Summary,
			Timestamp: recordTime,
		},
		{
			Name:        "decode_time_max_ns",
			Description: "Maximum (seen) time spent decoding a message in the interval",
			Namespace:   instance.Namespace,
			Value: metrics.MetricValue{
				Raw:      maxNs,
				Unit:     "ns",
				Interval: interval,
			},
			Type:      metrics.Summary,
			Timestamp: recordTime,
		},
	}
	return
}
