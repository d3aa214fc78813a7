package recorder

import (
	"statefeed/internal/metrics"
	"time"
)

func (instance *Instance) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	recordTime := time.Now()

	counters := []struct {
		name        string
		description string
		value       uint64
		unit        string
	}{
		{"recorded_states_total", "States written to outputs in the interval", instance.Metrics.Recorded.Swap(0), "count"},
		{"skipped_duplicates_total", "States skipped because their receive time was already recorded", instance.Metrics.SkippedDuplicates.Swap(0), "count"},
		{"frames_total", "Output frames accounted for in the interval", instance.Metrics.Frames.Swap(0), "frames"},
		{"file_writes_total", "Lines flushed to the recording file in the interval", instance.Metrics.FileWrites.Swap(0), "count"},
		{"beats_writes_total", "Events acknowledged by the beats server in the interval", instance.Metrics.BeatsWrites.Swap(0), "count"},
		{"write_errors_total", "Output failures in the interval", instance.Metrics.WriteErrors.Swap(0), "count"},
	}

	for _, counter := range counters {
		collection = append(collection, metrics.Metric{
			Name:        counter.name,
			Description: counter.description,
			Namespace:   instance.Namespace,
			Value: metrics.MetricValue{
				Raw:      counter.value,
				Unit:     counter.unit,
				Interval: interval,
			},
			Type:      metrics.Counter,
			Timestamp: recordTime,
		})
	}
	return
}
