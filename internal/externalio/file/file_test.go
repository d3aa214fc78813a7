package file

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"statefeed/internal/delivery"
	"statefeed/pkg/protocol"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestOutModule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.jsonl")

	mod, err := NewOutput(path)
	if err != nil {
		t.Fatalf("NewOutput failed: %v", err)
	}
	mod.batchSize = 3

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	const count = 5
	for i := 0; i < count; i++ {
		doc, err := protocol.Decode([]byte(`{ "seq" : ` + string(rune('0'+i)) + ` }`))
		if err != nil {
			t.Fatal(err)
		}
		state := delivery.State{Document: doc, ReceivedAt: base.Add(time.Duration(i) * time.Second), Interval: time.Second}
		if _, err := mod.Write(state, 60); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	// Only the first batch is on disk before shutdown
	if lines := readLines(t, path); len(lines) != 3 {
		t.Fatalf("expected 3 flushed lines, got %d", len(lines))
	}

	if err := mod.Shutdown(); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != count {
		t.Fatalf("expected %d lines, got %d", count, len(lines))
	}
	for i, line := range lines {
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("line %d not json: %v", i, err)
		}
		if record.Frames != 60 || record.IntervalNs != int64(time.Second) {
			t.Fatalf("line %d: unexpected record %+v", i, record)
		}
		if want := `{"seq":` + string(rune('0'+i)) + `}`; string(record.State) != want {
			t.Fatalf("line %d: state %s, want %s", i, record.State, want)
		}
	}
}

func TestCompressedOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.jsonl.zst")

	mod, err := NewOutput(path)
	if err != nil {
		t.Fatalf("NewOutput failed: %v", err)
	}
	mod.batchSize = 2

	const count = 5
	for i := 0; i < count; i++ {
		doc, err := protocol.Decode([]byte(`{"seq":` + string(rune('0'+i)) + `}`))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mod.Write(delivery.State{Document: doc, ReceivedAt: time.Now()}, 1); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}
	if err := mod.Shutdown(); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		t.Fatal(err)
	}
	defer decoder.Close()

	var seen int
	scanner := bufio.NewScanner(decoder)
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("line %d not json: %v", seen, err)
		}
		if want := `{"seq":` + string(rune('0'+seen)) + `}`; string(record.State) != want {
			t.Fatalf("line %d: state %s, want %s", seen, record.State, want)
		}
		seen++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading compressed recording: %v", err)
	}
	if seen != count {
		t.Fatalf("expected %d lines, got %d", count, seen)
	}
}

// Accepts up to limit bytes in its first write, then fails once
type shortWriter struct {
	bytes.Buffer
	limit  int
	failed bool
}

func (writer *shortWriter) Write(p []byte) (n int, err error) {
	if !writer.failed && len(p) > writer.limit {
		writer.failed = true
		n, _ = writer.Buffer.Write(p[:writer.limit])
		err = errors.New("disk full")
		return
	}
	n, err = writer.Buffer.Write(p)
	return
}

func (writer *shortWriter) Close() error { return nil }

func TestFlushResumesPartialLine(t *testing.T) {
	sink := &shortWriter{limit: 7}
	mod := &OutModule{sink: sink, batchBuffer: &[][]byte{}, batchSize: 10}

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 2; i++ {
		doc, err := protocol.Decode([]byte(`{"seq":` + string(rune('0'+i)) + `}`))
		if err != nil {
			t.Fatal(err)
		}
		state := delivery.State{Document: doc, ReceivedAt: base.Add(time.Duration(i) * time.Second)}
		if _, err := mod.Write(state, 1); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	if _, err := mod.FlushBuffer(); err == nil {
		t.Fatal("expected the first flush to fail")
	}
	flushed, err := mod.FlushBuffer()
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if flushed != 2 {
		t.Fatalf("expected 2 lines on retry, got %d", flushed)
	}

	lines := strings.Split(strings.TrimSuffix(sink.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), sink.String())
	}
	for i, line := range lines {
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("line %d corrupted: %q: %v", i, line, err)
		}
		if want := `{"seq":` + string(rune('0'+i)) + `}`; string(record.State) != want {
			t.Fatalf("line %d: state %s, want %s", i, record.State, want)
		}
	}
}

func TestNilModule(t *testing.T) {
	mod, err := NewOutput("")
	if mod != nil || err != nil {
		t.Fatalf("expected nil module for empty path")
	}
	if n, err := mod.Write(delivery.State{}, 1); n != 0 || err != nil {
		t.Fatal("nil module must be a no-op")
	}
	if err := mod.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func readLines(t *testing.T, path string) (lines []string) {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return
}
