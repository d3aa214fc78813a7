package beats

import (
	"time"

	lumberjack "github.com/elastic/go-lumber/client/v2"
)

type OutModule struct {
	endpoint string
	timeout  time.Duration
	sink     *lumberjack.SyncClient
}
