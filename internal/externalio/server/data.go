package server

import (
	"context"
	"errors"
	"net/http"
	"statefeed/internal/global"
	"statefeed/internal/metrics"
	"strings"
	"time"
)

var errFutureStart = errors.New("start time is in the future")

// Handles metric search requests based on time for data
func handleData(baseCtx context.Context, search DataSearcher, serverResponder http.ResponseWriter, clientRequest *http.Request) {
	reqNamespace := splitNamespace(strings.TrimPrefix(clientRequest.URL.Path, global.DataPath))
	reqName := clientRequest.FormValue("name")

	reqStartTime, reqEndTime, err := parseTimeWindow(clientRequest.FormValue("starttime"), clientRequest.FormValue("endtime"), time.Now())
	if err != nil {
		serverResponder.WriteHeader(http.StatusBadRequest)
		return
	}

	// Query internal metric registry
	rawResults := search(reqName, reqNamespace, reqStartTime, reqEndTime)

	var results []metrics.JMetric
	for _, rawResult := range rawResults {
		results = append(results, rawResult.Convert())
	}

	if len(results) == 0 {
		jResp(baseCtx, serverResponder, Jerror{Msg: "Search returned no results"})
	} else {
		jResp(baseCtx, serverResponder, results)
	}
}

// Handles requests for the most recent value of one metric
func handleLatest(baseCtx context.Context, latest LatestFinder, serverResponder http.ResponseWriter, clientRequest *http.Request) {
	reqNamespace := splitNamespace(strings.TrimPrefix(clientRequest.URL.Path, global.LatestPath))
	reqName := clientRequest.FormValue("name")
	if reqName == "" {
		serverResponder.WriteHeader(http.StatusBadRequest)
		return
	}

	result, found := latest(reqName, reqNamespace)
	if !found {
		jResp(baseCtx, serverResponder, Jerror{Msg: "Search returned no results"})
		return
	}
	jResp(baseCtx, serverResponder, result.Convert())
}

// Parses start (RFC3339, relative duration, or empty for last minute) and end (RFC3339, "now", or empty)
func parseTimeWindow(rawStart, rawEnd string, now time.Time) (start, end time.Time, err error) {
	switch {
	case rawStart == "":
		// Default start is last minute
		start = now.Add(-1 * time.Minute)
	case rawStart[0] == '-' || rawStart[0] == '+':
		dur, parseErr := time.ParseDuration(rawStart)
		if parseErr != nil {
			// Default start is last minute
			start = now.Add(-1 * time.Minute)
		} else if dur > 0 {
			err = errFutureStart
			return
		} else {
			start = now.Add(dur)
		}
	default:
		start, err = time.Parse(time.RFC3339Nano, rawStart)
		if err != nil {
			return
		}
	}

	if rawEnd == "now" || rawEnd == "" {
		end = now // Default end is now
	} else {
		end, err = time.Parse(time.RFC3339Nano, rawEnd)
		if err != nil {
			return
		}
	}
	return
}
