// Forwards recorded states to a Beats/Logstash endpoint over the lumberjack v2 protocol
package beats

import (
	"fmt"
	"time"

	lumberjack "github.com/elastic/go-lumber/client/v2"
)

const (
	defaultTimeout   = 3 * time.Second
	compressionLevel = 3 // State documents are repetitive JSON
)

// Creates new beats (lumberjack) output module. Returns nil nil if no endpoint.
func NewOutput(endpoint string) (module *OutModule, err error) {
	if endpoint == "" {
		return
	}

	module = &OutModule{
		endpoint: endpoint,
		timeout:  defaultTimeout,
	}
	err = module.dial()
	if err != nil {
		module = nil
		return
	}
	return
}

func (mod *OutModule) dial() (err error) {
	ljClient, err := lumberjack.SyncDial(mod.endpoint,
		lumberjack.CompressionLevel(compressionLevel),
		lumberjack.Timeout(mod.timeout),
	)
	if err != nil {
		err = fmt.Errorf("failed connection to beats server %s: %w", mod.endpoint, err)
		return
	}
	mod.sink = ljClient
	return
}

// Gracefully stops module
func (mod *OutModule) Shutdown() (err error) {
	if mod == nil {
		return
	}
	if mod.sink != nil {
		err = mod.sink.Close()
		mod.sink = nil
	}
	return
}
