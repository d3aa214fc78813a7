package global

import "time"

const (
	// Descriptive Names for available verbosity levels
	VerbosityNone int = iota
	VerbosityStandard
	VerbosityProgress
	VerbosityData
	VerbosityFullData
	VerbosityDebug

	// Descriptive names for available severity levels
	ErrorLog string = "Error"
	WarnLog  string = "Warn"
	InfoLog  string = "Info"
)

const (
	ProgVersion  string = "v0.3.0"
	ProgBaseName string = "statefeed"

	// Context keys
	LoggerKey  CtxKey = "logger"  // Event queue (mostly for variable log verbosity handling)
	LogTagsKey CtxKey = "logtags" // List of tags in order of broad->specific appended/popped at various parts of the program

	DefaultConfigPath    string = "/etc/statefeed.json"
	DefaultListenAddress string = "::"
	DefaultRecordFPS     int    = 60

	// Transport timing
	PollInterval  time.Duration = 500 * time.Millisecond // Bounded wait on every blocking receive
	AcceptTimeout time.Duration = 30 * time.Second       // Single TCP client must connect within this
	StopTimeout   time.Duration = 5 * time.Second

	// Socket sizing
	StreamReceiveBuffer int = 4 * 1024 * 1024

	// Announcement prefix for the resolved TCP port (parent process parses stdout)
	TCPPortPrefix string = "TCP_PORT:"

	// Monitor defaults
	DefaultRefreshInterval time.Duration = 250 * time.Millisecond

	// Metric HTTP server
	HTTPListenAddr   string        = "localhost" // Metric queries only exposed to local machine
	HTTPListenPort   int           = 19273
	HTTPReadTimeout  time.Duration = 30 * time.Second
	HTTPWriteTimeout time.Duration = 10 * time.Second
	HTTPIdleTimeout  time.Duration = 180 * time.Second
	DataPath         string        = "/data/"
	DiscoveryPath    string        = "/discover"
	LatestPath       string        = "/latest/"

	// Metric defaults
	DefaultMetricInterval  time.Duration = 5 * time.Second
	DefaultMetricRetention time.Duration = 10 * time.Minute

	// Namespacing Name Components
	NSMetric    string = "Metrics"
	NSMetricSrv string = "Server"
	NSTest      string = "Test"
	NSCLI       string = "CLI"
	NSListen    string = "Listener"
	NSUDP       string = "UDP"
	NSStream    string = "Stream"
	NSTCP       string = "TCP"
	NSDelivery  string = "Delivery"
	NSLive      string = "Live"
	NSQueue     string = "Queue"
	NSRecord    string = "Recorder"
	NSMonitor   string = "Monitor"
	NSoFile     string = "File"
	NSoBeats    string = "Beats"
)
