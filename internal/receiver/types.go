package receiver

import (
	"context"
	"io"
	"net/http"
	"statefeed/internal/delivery"
	"statefeed/internal/listener"
	"statefeed/internal/metrics"
	"statefeed/internal/monitor"
	"statefeed/internal/recorder"
	"statefeed/internal/transport"
	"sync"
	"time"
)

type JSONConfig struct {
	Transport struct {
		Type    string `json:"type"`
		Address string `json:"address,omitempty"`
		Port    int    `json:"port,omitempty"`
		FD      *int   `json:"fd,omitempty"`
	} `json:"transport"`
	Delivery struct {
		Mode string `json:"mode"`
	} `json:"delivery"`
	Recording struct {
		FilePath     string `json:"filePath,omitempty"`
		BeatsAddress string `json:"beatsAddress,omitempty"`
		FPS          int    `json:"fps,omitempty"`
	} `json:"recording"`
	Monitor struct {
		Disabled        bool     `json:"disabled,omitempty"`
		RefreshInterval string   `json:"refreshInterval,omitempty"`
		Fields          []string `json:"fields,omitempty"`
	} `json:"monitor"`
	Metrics struct {
		Interval          string `json:"collectionInterval,omitempty"`
		MaxAge            string `json:"maximumRetention,omitempty"`
		EnableQueryServer bool   `json:"enableHTTPQueryServer"`
		QueryServerPort   int    `json:"queryServerPort,omitempty"`
	} `json:"metrics"`
}

type Config struct {
	// Transport
	Transport transport.Config

	// Delivery
	Mode        delivery.Mode
	StateReader delivery.StateReader // Optional consumer schema hook (live mode)

	// Recording (buffered mode)
	RecordFilePath string
	BeatsEndpoint  string
	RecordFPS      int

	// Monitor (live mode)
	MonitorEnabled bool
	MonitorFields  []string
	MonitorRefresh time.Duration
	MonitorOutput  io.Writer

	// Metrics
	MetricQueryServerEnabled bool
	MetricQueryServerPort    int
	MetricCollectionInterval time.Duration
	MetricMaxAge             time.Duration
}

type Daemon struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	wg           sync.WaitGroup
	shutdownOnce sync.Once

	Listener     *listener.Instance
	Slot         *delivery.LiveSlot
	Queue        *delivery.Queue
	Recorder     *recorder.Instance
	Monitor      *monitor.Instance
	Gatherer     *metrics.Gatherer
	MetricServer *http.Server
}
