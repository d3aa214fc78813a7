// Central registry for storing time-based metrics and their associated data
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Creates new metric registry storage
func New() (new *Registry) {
	new = &Registry{
		metrics: make(map[time.Time]map[string]map[string]Metric),
	}
	return
}

// Adds a batch of metrics to the slice containing now (rounded down to the interval)
func (registry *Registry) Add(now time.Time, interval time.Duration, batch []Metric) (timeSlice time.Time) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	timeSlice = now
	if interval > 0 {
		timeSlice = now.Truncate(interval)
	}
	if registry.metrics[timeSlice] == nil {
		registry.metrics[timeSlice] = make(map[string]map[string]Metric)
	}

	for _, metric := range batch {
		namespace := strings.Join(metric.Namespace, "/")
		if registry.metrics[timeSlice][namespace] == nil {
			registry.metrics[timeSlice][namespace] = make(map[string]Metric)
		}
		registry.metrics[timeSlice][namespace][metric.Name] = metric
	}
	return
}

// Deletes slices older than maxAge relative to currentTime
func (registry *Registry) Prune(currentTime time.Time, maxAge time.Duration) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for timeSlice := range registry.metrics {
		if currentTime.Sub(timeSlice) > maxAge {
			delete(registry.metrics, timeSlice)
		}
	}
}

// Supports exact match or prefix match. Empty query matches all.
func matchesNamespace(metricNS, queryNS []string) (matches bool) {
	if len(queryNS) == 0 || (len(queryNS) == 1 && queryNS[0] == "") {
		matches = true
		return
	}
	if len(metricNS) < len(queryNS) {
		return
	}
	for i := range queryNS {
		if metricNS[i] != queryNS[i] {
			return
		}
	}
	matches = true
	return
}

// Returns all metrics matching name (empty = all) and namespace prefix (empty = all),
// oldest first, optionally restricted to [start, end].
func (registry *Registry) Search(name string, namespacePrefix []string, start, end time.Time) (results []Metric) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	var timestamps []time.Time
	for ts := range registry.metrics {
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})

	for _, ts := range timestamps {
		nsMap := registry.metrics[ts]

		namespaces := make([]string, 0, len(nsMap))
		for nsStr := range nsMap {
			namespaces = append(namespaces, nsStr)
		}
		sort.Strings(namespaces)

		for _, nsStr := range namespaces {
			if !matchesNamespace(strings.Split(nsStr, "/"), namespacePrefix) {
				continue
			}
			for metricName, metric := range nsMap[nsStr] {
				if name == "" || metricName == name {
					results = append(results, metric)
				}
			}
		}
	}
	return
}

// Most recent value of one metric in an exact namespace
func (registry *Registry) Latest(name string, namespace []string) (metric Metric, found bool) {
	results := registry.Search(name, namespace, time.Time{}, time.Time{})
	want := strings.Join(namespace, "/")
	for i := len(results) - 1; i >= 0; i-- {
		if strings.Join(results[i].Namespace, "/") == want {
			metric = results[i]
			found = true
			return
		}
	}
	return
}

// Finds all distinct metric kinds matching the filters (time-independent). Empty filters match all.
func (registry *Registry) Discover(name string, namespacePrefix []string, metricType MetricType) (results []Metric) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]Metric)
	for _, nsMap := range registry.metrics {
		for nsStr, metricsMap := range nsMap {
			if !matchesNamespace(strings.Split(nsStr, "/"), namespacePrefix) {
				continue
			}
			for _, metric := range metricsMap {
				if name != "" && !strings.Contains(metric.Name, name) {
					continue
				}
				if metricType != "" && metric.Type != metricType {
					continue
				}

				key := nsStr + "|" + metric.Name
				if _, exists := seen[key]; exists {
					continue
				}

				// Strip time + raw value
				seen[key] = Metric{
					Name:        metric.Name,
					Description: metric.Description,
					Namespace:   metric.Namespace,
					Type:        metric.Type,
					Value:       MetricValue{Unit: metric.Value.Unit},
				}
			}
		}
	}

	results = make([]Metric, 0, len(seen))
	for _, metric := range seen {
		results = append(results, metric)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Name != results[j].Name {
			return results[i].Name < results[j].Name
		}
		return strings.Join(results[i].Namespace, "/") < strings.Join(results[j].Namespace, "/")
	})
	return
}

// Converts internal metric type to export (JSON) metric
func (inMetric Metric) Convert() (outMetric JMetric) {
	outMetric.Name = inMetric.Name
	outMetric.Description = inMetric.Description
	outMetric.Namespace = strings.Join(inMetric.Namespace, "/")
	outMetric.Type = string(inMetric.Type)
	outMetric.Value.Unit = inMetric.Value.Unit
	outMetric.Value.Interval = inMetric.Value.Interval.String()
	outMetric.Value.Raw = fmt.Sprintf("%v", inMetric.Value.Raw)
	outMetric.Timestamp = inMetric.Timestamp.Format(time.RFC3339Nano)
	return
}
