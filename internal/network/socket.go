// Socket construction and inspection helpers built on raw socket options
package network

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// Binds a UDP socket. IPv6 addresses are bound dual-stack (IPV6_V6ONLY=0) so IPv4 senders are accepted too.
// Port 0 lets the kernel choose.
func ListenUDP(ctx context.Context, address string, port int) (conn *net.UDPConn, err error) {
	cfg := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			if network != "udp6" {
				return nil
			}
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := cfg.ListenPacket(ctx, "udp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		err = fmt.Errorf("failed to bind udp socket: %w", err)
		return
	}
	conn = pc.(*net.UDPConn)
	return
}

// Creates a TCP listener on 127.0.0.1 with an OS-assigned port and the given accept backlog
func ListenLoopbackTCP(backlog int) (listener *net.TCPListener, err error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		err = fmt.Errorf("failed to create tcp socket: %w", err)
		return
	}

	err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err != nil {
		unix.Close(fd)
		err = fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
		return
	}

	err = unix.Bind(fd, &unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}})
	if err != nil {
		unix.Close(fd)
		err = fmt.Errorf("failed to bind tcp socket: %w", err)
		return
	}

	err = unix.Listen(fd, backlog)
	if err != nil {
		unix.Close(fd)
		err = fmt.Errorf("failed to listen on tcp socket: %w", err)
		return
	}

	// FileListener duplicates the descriptor, the original is released afterwards
	file := os.NewFile(uintptr(fd), "tcp-loopback")
	ln, err := net.FileListener(file)
	file.Close()
	if err != nil {
		err = fmt.Errorf("failed to wrap tcp listener: %w", err)
		return
	}

	listener, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		err = fmt.Errorf("unexpected listener type %T", ln)
		return
	}
	return
}

// Takes ownership of an inherited stream socket descriptor.
// The descriptor is duplicated into the returned connection and the original is closed.
func AdoptStreamFD(fd int) (conn net.Conn, err error) {
	if fd < 0 {
		err = fmt.Errorf("invalid descriptor %d", fd)
		return
	}

	sockType, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		err = fmt.Errorf("descriptor %d is not a socket: %w", fd, err)
		return
	}
	if sockType != unix.SOCK_STREAM {
		err = fmt.Errorf("descriptor %d is not a stream socket (type %d)", fd, sockType)
		return
	}

	original := os.NewFile(uintptr(fd), "inherited-stream-"+strconv.Itoa(fd))
	conn, err = net.FileConn(original)
	closeErr := original.Close()
	if err != nil {
		err = fmt.Errorf("failed to duplicate descriptor %d: %w", fd, err)
		return
	}
	if closeErr != nil {
		conn.Close()
		conn = nil
		err = fmt.Errorf("failed to close original descriptor %d: %w", fd, closeErr)
		return
	}
	return
}

// Requests a larger kernel receive buffer. Returns the size the kernel reports afterwards.
func SetReceiveBuffer(conn syscall.Conn, size int) (effective int, err error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		err = fmt.Errorf("failed to access raw socket: %w", err)
		return
	}

	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
		if sockErr != nil {
			return
		}
		effective, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	})
	if err == nil {
		err = sockErr
	}
	if err != nil {
		err = fmt.Errorf("failed to set receive buffer to %d bytes: %w", size, err)
	}
	return
}

// Number of bytes waiting in the socket receive queue
func UnreadBytes(conn syscall.Conn) (queued int, err error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		err = fmt.Errorf("failed to access raw socket: %w", err)
		return
	}

	var ioctlErr error
	err = rawConn.Control(func(fd uintptr) {
		queued, ioctlErr = unix.IoctlGetInt(int(fd), unix.SIOCINQ)
	})
	if err == nil {
		err = ioctlErr
	}
	if err != nil {
		err = fmt.Errorf("failed to read socket queue size: %w", err)
	}
	return
}
