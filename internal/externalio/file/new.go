package file

import (
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	defaultBatchSize = 20
	compressedSuffix = ".zst"
)

// Creates new file output module. Returns nil nil if no path.
// Paths ending in .zst are written as a zstd stream.
func NewOutput(filePath string) (module *OutModule, err error) {
	if filePath == "" {
		return
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		err = fmt.Errorf("failed to open recording file: %w", err)
		return
	}

	module = &OutModule{
		sink:        file,
		batchBuffer: &[][]byte{},
		batchSize:   defaultBatchSize,
	}

	if strings.HasSuffix(filePath, compressedSuffix) {
		var encoder *zstd.Encoder
		encoder, err = zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			file.Close()
			module = nil
			err = fmt.Errorf("failed to create recording compressor: %w", err)
			return
		}
		module.sink = &compressedSink{encoder: encoder, file: file}
	}
	return
}

func (sink *compressedSink) Write(p []byte) (n int, err error) { return sink.encoder.Write(p) }

// Ends the current block so flushed batches are readable before close
func (sink *compressedSink) Flush() (err error) { return sink.encoder.Flush() }

func (sink *compressedSink) Close() (err error) {
	err = sink.encoder.Close()
	closeErr := sink.file.Close()
	if err == nil {
		err = closeErr
	}
	return
}
