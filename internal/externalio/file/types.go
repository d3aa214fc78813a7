package file

import (
	"encoding/json"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

type OutModule struct {
	sink        io.WriteCloser
	batchBuffer *[][]byte
	batchSize   int
}

// Recording file wrapped in a zstd stream
type compressedSink struct {
	encoder *zstd.Encoder
	file    *os.File
}

// Sinks that hold data back until asked
type flusher interface {
	Flush() error
}

// One line of the recording file
type Record struct {
	ReceivedAt string          `json:"receivedAt"`
	IntervalNs int64           `json:"intervalNs"`
	Frames     int             `json:"frames"`
	State      json.RawMessage `json:"state"`
}
