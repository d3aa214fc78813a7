// HTTP server to expose discovery and querying of metric data to other programs only on the local system
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"statefeed/internal/metrics"
	"strconv"
	"strings"
)

// Read in web static files at compile time
//
//go:embed static-files/metric-help.html
var webFiles embed.FS

// Sets up HTTP listener configuration for metric querying against the registry
func SetupListener(ctx context.Context, port int, registry *metrics.Registry) (server *http.Server, err error) {
	server, err = setupWith(ctx, port, registry.Search, registry.Discover, registry.Latest)
	return
}

func setupWith(ctx context.Context, port int, search DataSearcher, discover Discoverer, latest LatestFinder) (server *http.Server, err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSMetricSrv)
	requestMultiplexer := http.NewServeMux()

	helpPage, err := webFiles.ReadFile("static-files/metric-help.html")
	if err != nil {
		err = fmt.Errorf("failed reading metric help html page from internal fs: %w", err)
		return
	}

	// Replace variables in html with globals
	helpPage = bytes.Replace(helpPage, []byte("@@LISTEN_ADDR@@"), []byte(global.HTTPListenAddr), 1)
	helpPage = bytes.Replace(helpPage, []byte("@@LISTEN_PORT@@"), []byte(strconv.Itoa(port)), 1)
	helpPage = bytes.Replace(helpPage, []byte("@@DATA_PATH@@"), []byte(global.DataPath), 1)
	helpPage = bytes.Replace(helpPage, []byte("@@DISCOVER_PATH@@"), []byte(global.DiscoveryPath), 1)
	helpPage = bytes.Replace(helpPage, []byte("@@LATEST_PATH@@"), []byte(global.LatestPath), 1)

	// Root help page
	requestMultiplexer.HandleFunc("/", func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		if clientRequest.Method != http.MethodGet {
			serverResponder.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if clientRequest.URL.Path != "/" {
			serverResponder.WriteHeader(http.StatusNotFound)
			return
		}

		serverResponder.Header().Set("Content-Type", "text/html; charset=utf-8")
		serverResponder.WriteHeader(http.StatusOK)
		serverResponder.Write(helpPage)
	})

	// Metric Discovery Requests
	requestMultiplexer.HandleFunc(global.DiscoveryPath, func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		if clientRequest.Method != http.MethodGet {
			serverResponder.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handleDiscovery(ctx, discover, serverResponder, clientRequest)
	})
	requestMultiplexer.HandleFunc(global.DiscoveryPath+"/", func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		if clientRequest.Method != http.MethodGet {
			serverResponder.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handleDiscovery(ctx, discover, serverResponder, clientRequest)
	})

	// Metric Data Requests
	requestMultiplexer.HandleFunc(global.DataPath, func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		if clientRequest.Method != http.MethodGet {
			serverResponder.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handleData(ctx, search, serverResponder, clientRequest)
	})

	// Latest Value Requests
	requestMultiplexer.HandleFunc(global.LatestPath, func(serverResponder http.ResponseWriter, clientRequest *http.Request) {
		if clientRequest.Method != http.MethodGet {
			serverResponder.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handleLatest(ctx, latest, serverResponder, clientRequest)
	})

	// Server configuration
	server = &http.Server{
		Addr:         global.HTTPListenAddr + ":" + strconv.Itoa(port),
		Handler:      requestMultiplexer,
		ReadTimeout:  global.HTTPReadTimeout,
		WriteTimeout: global.HTTPWriteTimeout,
		IdleTimeout:  global.HTTPIdleTimeout,
		ErrorLog:     log.New(httpLogWriter{ctx: ctx}, "", 0),
	}
	return
}

// Starts the metric HTTP server and waits for requests
func Start(ctx context.Context, server *http.Server) {
	ctx = logctx.AppendCtxTag(ctx, global.NSMetricSrv)
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Metric query server starting on http://%s/\n", server.Addr)

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Metric query server failed to start: %v\n", err)
	}
}

// Splits a URL path remainder into namespace components, nil when empty
func splitNamespace(raw string) (namespace []string) {
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return
	}
	namespace = strings.Split(raw, "/")
	return
}

// Encodes JSON and sends as response body
func jResp(ctx context.Context, serverResponder http.ResponseWriter, content any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(content); err != nil {
		serverResponder.WriteHeader(http.StatusInternalServerError)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Failed marshaling metric results: %v\n", err)
		return
	}
	serverResponder.Header().Set("Content-Type", "application/json")
	serverResponder.WriteHeader(http.StatusOK)
	serverResponder.Write(buf.Bytes())
}

// Logs HTTP server errors to internal program buffer (via context logger)
func (logWriter httpLogWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	if n == 0 {
		return
	}
	logctx.LogEvent(
		logWriter.ctx,
		global.VerbosityStandard,
		global.ErrorLog,
		"%s\n", strings.TrimSpace(string(p)),
	)
	return
}
