package metrics

import (
	"sync"
	"time"
)

// Time-sliced metric storage. key0=slice start, key1=joined namespace, key2=metric name
type Registry struct {
	mu      sync.RWMutex
	metrics map[time.Time]map[string]map[string]Metric
}

type MetricType string

const (
	Counter MetricType = "counter" // count within the interval
	Gauge   MetricType = "gauge"   // point-in-time value
	Summary MetricType = "summary" // avg/max/percent over the interval
)

// Container for a metric and associated data
type Metric struct {
	Name        string // e.g. valid_messages_total, queue_depth
	Description string
	Namespace   []string // e.g. "Listener/UDP"
	Value       MetricValue
	Type        MetricType
	Timestamp   time.Time // time when the metric was recorded
}

// Specific value of a metric
type MetricValue struct {
	Raw      any           // uint64, int, float64
	Unit     string        // e.g., "ns", "bytes", "count"
	Interval time.Duration // measurement window
}

// Anything that can report metrics for the last interval
type Collector interface {
	CollectMetrics(interval time.Duration) []Metric
}

// JSON version
type JMetric struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Namespace   string       `json:"namespace"`
	Value       JMetricValue `json:"value"`
	Type        string       `json:"type"`
	Timestamp   string       `json:"timestamp"`
}

type JMetricValue struct {
	Raw      string `json:"raw"`
	Unit     string `json:"unit"`
	Interval string `json:"interval"`
}
