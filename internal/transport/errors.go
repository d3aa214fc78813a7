package transport

import (
	"errors"
	"fmt"
)

var (
	ErrAcceptTimeout = errors.New("no client connected before the accept deadline")
	ErrStreamClosed  = errors.New("peer closed the connection")
	ErrInvalidConfig = errors.New("invalid transport configuration")
)

// Socket could not be created, bound, or adopted
type BindError struct {
	Transport Kind
	Address   string
	Err       error
}

func (err *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s transport on %s: %v", err.Transport, err.Address, err.Err)
}

func (err *BindError) Unwrap() error {
	return err.Err
}
