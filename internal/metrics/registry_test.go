package metrics

import (
	"context"
	"statefeed/internal/global"
	"testing"
	"time"
)

func setupRegistryWithData(t *testing.T) (reg *Registry, ts map[string]time.Time) {
	t.Helper()
	reg = New()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ts = map[string]time.Time{
		"ts1": base,
		"ts2": base.Add(1 * time.Minute),
		"ts3": base.Add(2 * time.Minute),
	}

	udp := []string{global.NSListen, global.NSUDP}
	queue := []string{global.NSDelivery, global.NSQueue}

	reg.Add(ts["ts1"], time.Second, []Metric{
		{Name: "valid_messages_total", Namespace: udp, Type: Counter, Value: MetricValue{Raw: uint64(10), Unit: "count"}, Timestamp: ts["ts1"]},
		{Name: "queue_depth", Namespace: queue, Type: Gauge, Value: MetricValue{Raw: 3, Unit: "count"}, Timestamp: ts["ts1"]},
	})
	reg.Add(ts["ts2"], time.Second, []Metric{
		{Name: "valid_messages_total", Namespace: udp, Type: Counter, Value: MetricValue{Raw: uint64(20), Unit: "count"}, Timestamp: ts["ts2"]},
		{Name: "malformed_messages_total", Namespace: udp, Type: Counter, Value: MetricValue{Raw: uint64(1), Unit: "count"}, Timestamp: ts["ts2"]},
	})
	reg.Add(ts["ts3"], time.Second, []Metric{
		{Name: "valid_messages_total", Namespace: udp, Type: Counter, Value: MetricValue{Raw: uint64(30), Unit: "count"}, Timestamp: ts["ts3"]},
		{Name: "queue_depth", Namespace: queue, Type: Gauge, Value: MetricValue{Raw: 0, Unit: "count"}, Timestamp: ts["ts3"]},
	})
	return
}

func TestRegistry_Search(t *testing.T) {
	reg, ts := setupRegistryWithData(t)

	tests := []struct {
		name            string
		metricName      string
		namespacePrefix []string
		start           time.Time
		end             time.Time
		want            int
	}{
		{"all metrics", "", nil, time.Time{}, time.Time{}, 6},
		{"empty namespace string matches all", "", []string{""}, time.Time{}, time.Time{}, 6},
		{"partial name is not a match", "valid", nil, time.Time{}, time.Time{}, 0},
		{"valid messages all slices", "valid_messages_total", nil, time.Time{}, time.Time{}, 3},
		{"listener prefix", "", []string{global.NSListen}, time.Time{}, time.Time{}, 4},
		{"delivery exact", "queue_depth", []string{global.NSDelivery, global.NSQueue}, time.Time{}, time.Time{}, 2},
		{"time window", "", nil, ts["ts2"], ts["ts3"], 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := reg.Search(tt.metricName, tt.namespacePrefix, tt.start, tt.end)
			if len(results) != tt.want {
				t.Fatalf("expected %d results, got %d", tt.want, len(results))
			}
		})
	}
}

func TestRegistry_Latest(t *testing.T) {
	reg, _ := setupRegistryWithData(t)

	metric, found := reg.Latest("valid_messages_total", []string{global.NSListen, global.NSUDP})
	if !found {
		t.Fatal("expected metric to be found")
	}
	if metric.Value.Raw != uint64(30) {
		t.Fatalf("expected newest value 30, got %v", metric.Value.Raw)
	}

	if _, found := reg.Latest("valid_messages_total", []string{global.NSListen}); found {
		t.Fatal("namespace must match exactly")
	}
}

func TestRegistry_Discover(t *testing.T) {
	reg, _ := setupRegistryWithData(t)

	tests := []struct {
		name      string
		search    string
		ns        []string
		mType     MetricType
		wantCount int
	}{
		{"all", "", nil, "", 3},
		{"substring name", "messages", nil, "", 2},
		{"gauge only", "", nil, Gauge, 1},
		{"listener namespace", "", []string{global.NSListen}, "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := reg.Discover(tt.search, tt.ns, tt.mType)
			if len(results) != tt.wantCount {
				t.Fatalf("expected %d results, got %d", tt.wantCount, len(results))
			}
			for _, result := range results {
				if !result.Timestamp.IsZero() || result.Value.Raw != nil {
					t.Fatalf("discovery must strip values: %+v", result)
				}
			}
		})
	}
}

func TestRegistry_Prune(t *testing.T) {
	reg, ts := setupRegistryWithData(t)

	reg.Prune(ts["ts3"].Add(30*time.Second), 1*time.Minute)

	results := reg.Search("", nil, time.Time{}, time.Time{})
	if len(results) != 2 {
		t.Fatalf("expected only newest slice to survive, got %d metrics", len(results))
	}
	for _, m := range results {
		if m.Timestamp.Before(ts["ts3"]) {
			t.Fatalf("unexpected old metric timestamp: %v", m.Timestamp)
		}
	}
}

func TestMetricConvert(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 5, time.UTC)
	in := Metric{
		Name:        "busy_time_percent",
		Description: "desc",
		Namespace:   []string{global.NSListen, global.NSTCP},
		Value:       MetricValue{Raw: 12.5, Unit: "%", Interval: 5 * time.Second},
		Type:        Summary,
		Timestamp:   ts,
	}
	out := in.Convert()

	if out.Namespace != "Listener/TCP" || out.Type != "summary" {
		t.Fatalf("unexpected conversion %+v", out)
	}
	if out.Value.Raw != "12.5" || out.Value.Interval != "5s" || out.Value.Unit != "%" {
		t.Fatalf("unexpected value conversion %+v", out.Value)
	}
	if out.Timestamp != "2026-03-01T10:00:00.000000005Z" {
		t.Fatalf("unexpected timestamp %q", out.Timestamp)
	}
}

type staticCollector struct {
	calls int
}

func (collector *staticCollector) CollectMetrics(interval time.Duration) []Metric {
	collector.calls++
	return []Metric{{
		Name:      "calls",
		Namespace: []string{global.NSTest},
		Type:      Counter,
		Value:     MetricValue{Raw: collector.calls, Unit: "count", Interval: interval},
		Timestamp: time.Now(),
	}}
}

func TestGatherer_Collect(t *testing.T) {
	collector := &staticCollector{}
	gatherer := NewGatherer(time.Second, time.Minute, collector)

	now := time.Now()
	gatherer.Collect(context.Background(), now)
	gatherer.Collect(context.Background(), now.Add(2*time.Second))

	if collector.calls != 2 {
		t.Fatalf("expected 2 collections, got %d", collector.calls)
	}
	metric, found := gatherer.Registry.Latest("calls", []string{global.NSTest})
	if !found || metric.Value.Raw != 2 {
		t.Fatalf("expected latest call count 2, got %+v (found=%v)", metric, found)
	}
}
