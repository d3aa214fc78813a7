package transport

import (
	"fmt"
	"statefeed/internal/global"
)

// Fills unset timing values
func (cfg *Config) setDefaults() {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = global.PollInterval
	}
	if cfg.AcceptTimeout <= 0 {
		cfg.AcceptTimeout = global.AcceptTimeout
	}
	if cfg.Type == KindUDP && cfg.Address == "" {
		cfg.Address = global.DefaultListenAddress
	}
}

// Checks that exactly one binding is described
func (cfg Config) Validate() (err error) {
	switch cfg.Type {
	case KindUDP:
		if cfg.Port < 0 || cfg.Port > 65535 {
			err = fmt.Errorf("%w: udp port %d out of range", ErrInvalidConfig, cfg.Port)
		}
	case KindFD:
		if cfg.FD < 0 {
			err = fmt.Errorf("%w: stream descriptor %d must be non-negative", ErrInvalidConfig, cfg.FD)
		}
	case KindTCP:
		// Always loopback with an OS-assigned port
	default:
		err = fmt.Errorf("%w: unknown transport type %q", ErrInvalidConfig, cfg.Type)
	}
	return
}

// Human readable location of the binding
func (cfg Config) String() (desc string) {
	switch cfg.Type {
	case KindUDP:
		desc = fmt.Sprintf("udp [%s]:%d", cfg.Address, cfg.Port)
	case KindFD:
		desc = fmt.Sprintf("fd %d", cfg.FD)
	case KindTCP:
		desc = "tcp 127.0.0.1"
	default:
		desc = string(cfg.Type)
	}
	return
}
