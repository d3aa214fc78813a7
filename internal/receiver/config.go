package receiver

import (
	"encoding/json"
	"fmt"
	"os"
	"statefeed/internal/delivery"
	"statefeed/internal/global"
	"statefeed/internal/transport"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

// Loads JSON config from file. Comments and trailing commas are allowed.
func LoadConfig(path string) (cfg JSONConfig, err error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config file: %w", err)
		return
	}

	err = json.Unmarshal(jsonc.ToJSON(configFile), &cfg)
	if err != nil {
		err = fmt.Errorf("invalid config syntax in '%s': %w", path, err)
		return
	}
	return
}

// Parses JSON config into daemon config
func (cfg JSONConfig) NewDaemonConf() (config Config, err error) {
	// Transport settings
	config.Transport.Type = transport.Kind(strings.ToLower(cfg.Transport.Type))
	config.Transport.Address = cfg.Transport.Address
	config.Transport.Port = cfg.Transport.Port
	config.Transport.FD = -1
	if cfg.Transport.FD != nil {
		config.Transport.FD = *cfg.Transport.FD
	}

	// Delivery settings
	config.Mode = delivery.Mode(strings.ToLower(cfg.Delivery.Mode))
	switch config.Mode {
	case "", delivery.Live, delivery.Buffered:
	default:
		err = fmt.Errorf("unknown delivery mode %q", cfg.Delivery.Mode)
		return
	}

	// Recording settings
	config.RecordFilePath = cfg.Recording.FilePath
	config.BeatsEndpoint = cfg.Recording.BeatsAddress
	config.RecordFPS = cfg.Recording.FPS

	// Monitor settings
	config.MonitorEnabled = !cfg.Monitor.Disabled
	config.MonitorFields = cfg.Monitor.Fields
	if cfg.Monitor.RefreshInterval != "" {
		config.MonitorRefresh, err = time.ParseDuration(cfg.Monitor.RefreshInterval)
		if err != nil {
			err = fmt.Errorf("failed to parse monitor refresh interval: %w", err)
			return
		}
	}

	// Metric settings
	config.MetricQueryServerEnabled = cfg.Metrics.EnableQueryServer
	config.MetricQueryServerPort = cfg.Metrics.QueryServerPort
	if cfg.Metrics.MaxAge != "" {
		config.MetricMaxAge, err = time.ParseDuration(cfg.Metrics.MaxAge)
		if err != nil {
			err = fmt.Errorf("failed to parse metric max age time: %w", err)
			return
		}
	}
	if cfg.Metrics.Interval != "" {
		config.MetricCollectionInterval, err = time.ParseDuration(cfg.Metrics.Interval)
		if err != nil {
			err = fmt.Errorf("failed to parse metric collection interval time: %w", err)
			return
		}
	}
	return
}

// Sets defaults for any missing/invalid values
func (cfg *Config) setDefaults() {
	// Transport
	if cfg.Transport.Type == "" {
		cfg.Transport.Type = transport.KindUDP
	}
	if cfg.Transport.Type == transport.KindUDP && cfg.Transport.Address == "" {
		cfg.Transport.Address = global.DefaultListenAddress
	}
	if cfg.Transport.PollInterval == 0 {
		cfg.Transport.PollInterval = global.PollInterval
	}
	if cfg.Transport.AcceptTimeout == 0 {
		cfg.Transport.AcceptTimeout = global.AcceptTimeout
	}

	// Delivery
	if cfg.Mode == "" {
		cfg.Mode = delivery.Live
	}

	// Recording
	if cfg.RecordFPS <= 0 {
		cfg.RecordFPS = global.DefaultRecordFPS
	}

	// Monitor
	if cfg.MonitorRefresh <= 0 {
		cfg.MonitorRefresh = global.DefaultRefreshInterval
	}
	if cfg.MonitorOutput == nil {
		cfg.MonitorOutput = os.Stderr
	}

	// Metrics
	if cfg.MetricMaxAge == 0 {
		cfg.MetricMaxAge = global.DefaultMetricRetention
	}
	if cfg.MetricQueryServerPort == 0 {
		cfg.MetricQueryServerPort = global.HTTPListenPort
	}
	if cfg.MetricCollectionInterval == 0 {
		cfg.MetricCollectionInterval = global.DefaultMetricInterval
	}
}
