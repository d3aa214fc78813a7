package protocol

import (
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrPeerClosed     = errors.New("peer closed the stream")
	ErrTruncatedFrame = errors.New("stream ended inside a frame payload")
	ErrStopped        = errors.New("read aborted by stop request")
	ErrFrameTooLarge  = fmt.Errorf("payload exceeds %d bytes", MaxMessageLen)
)

// Byte stream with a per-read deadline (net.Conn satisfies this)
type Stream interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// Reports whether the reader should give up on the next poll timeout
type StopFunc func() bool

// Frame announced a payload larger than MaxMessageLen; the payload was drained
type OversizedError struct {
	Length uint32
}

func (err *OversizedError) Error() string {
	return fmt.Sprintf("message too large (%d bytes), skipped", err.Length)
}

// Payload could not be decoded. Offset is the byte index of the failure,
// Window the surrounding text used for diagnostics.
type DecodeError struct {
	Offset int
	Window string
	Reason string
	Err    error
}

func (err *DecodeError) Error() string {
	return fmt.Sprintf("invalid payload at byte %d: %s", err.Offset, err.Reason)
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

// Value category of a document node
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (kind Kind) String() string {
	switch kind {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}
