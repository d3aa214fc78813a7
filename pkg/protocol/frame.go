// Length-prefixed framing used on stream transports: [4-byte big-endian length][payload]
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// Encodes the length prefix for a payload of n bytes
func EncodeHeader(n uint32) (header [HeaderLen]byte) {
	binary.BigEndian.PutUint32(header[:], n)
	return
}

// Decodes the length prefix
func ParseHeader(header [HeaderLen]byte) (n uint32) {
	n = binary.BigEndian.Uint32(header[:])
	return
}

// Appends one frame (header and payload) to dst. Does not enforce MaxMessageLen.
func AppendFrame(dst []byte, payload []byte) (out []byte) {
	header := EncodeHeader(uint32(len(payload)))
	out = append(dst, header[:]...)
	out = append(out, payload...)
	return
}

// Writes one frame to the writer
func WriteFrame(w io.Writer, payload []byte) (err error) {
	if len(payload) > MaxMessageLen {
		err = ErrFrameTooLarge
		return
	}

	data := AppendFrame(make([]byte, 0, HeaderLen+len(payload)), payload)
	for len(data) > 0 {
		var n int
		n, err = w.Write(data)
		if err != nil {
			err = fmt.Errorf("failed writing frame: %w", err)
			return
		}
		data = data[n:]
	}
	return
}

// Reads exactly len(buf) bytes.
// With a non-zero poll interval every read is bounded by a deadline; deadline expiry is retried
// unless stop reports true, in which case ErrStopped is returned immediately.
// Stream end before any byte is io.EOF, after some bytes io.ErrUnexpectedEOF.
// A reader that keeps returning no data and no error yields io.ErrNoProgress.
func ReadFull(stream Stream, buf []byte, poll time.Duration, stop StopFunc) (n int, err error) {
	var emptyReads int
	for n < len(buf) {
		if poll > 0 {
			err = stream.SetReadDeadline(time.Now().Add(poll))
			if err != nil {
				err = fmt.Errorf("failed to set read deadline: %w", err)
				return
			}
		}

		var read int
		read, err = stream.Read(buf[n:])
		n += read
		if n == len(buf) {
			err = nil
			return
		}
		if err == nil {
			if read > 0 {
				emptyReads = 0
				continue
			}
			emptyReads++
			if emptyReads >= maxEmptyReads {
				err = io.ErrNoProgress
				return
			}
			continue
		}

		if IsTimeout(err) {
			if stop != nil && stop() {
				err = ErrStopped
				return
			}
			err = nil
			continue
		}

		if errors.Is(err, io.EOF) {
			if n == 0 {
				err = io.EOF
			} else {
				err = io.ErrUnexpectedEOF
			}
			return
		}
		return
	}
	return
}

// Reads one frame from the stream.
// A zero-length frame returns a nil payload and nil error.
// An oversized frame is drained to keep framing aligned and returns *OversizedError.
// ErrPeerClosed means the peer hung up between frames (including mid-header).
func ReadFrame(stream Stream, poll time.Duration, stop StopFunc) (payload []byte, err error) {
	var header [HeaderLen]byte
	_, err = ReadFull(stream, header[:], poll, stop)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrPeerClosed
		}
		return
	}

	length := ParseHeader(header)
	if length == 0 {
		return
	}

	if int64(length) > int64(MaxMessageLen) {
		err = discard(stream, int64(length), poll, stop)
		if err != nil {
			return
		}
		err = &OversizedError{Length: length}
		return
	}

	payload = make([]byte, length)
	_, err = ReadFull(stream, payload, poll, stop)
	if err != nil {
		payload = nil
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncatedFrame
		}
		return
	}
	return
}

// Reads and throws away exactly n bytes
func discard(stream Stream, n int64, poll time.Duration, stop StopFunc) (err error) {
	scratch := make([]byte, discardChunk)
	for n > 0 {
		chunk := scratch
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}

		var read int
		read, err = ReadFull(stream, chunk, poll, stop)
		n -= int64(read)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = ErrTruncatedFrame
			}
			return
		}
	}
	return
}

// Reports whether err is a read deadline expiry
func IsTimeout(err error) (timeout bool) {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		timeout = true
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}
	return
}
