package network

import (
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestListenUDP(t *testing.T) {
	tests := []struct {
		name    string
		address string
		dialTo  string
	}{
		{"ipv4 loopback", "127.0.0.1", "127.0.0.1"},
		{"dual stack accepts ipv4", "::", "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := ListenUDP(context.Background(), tt.address, 0)
			if err != nil {
				t.Skipf("cannot bind %s in this environment: %v", tt.address, err)
			}
			defer conn.Close()

			port := conn.LocalAddr().(*net.UDPAddr).Port
			if port == 0 {
				t.Fatal("expected kernel assigned port")
			}

			sender, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP(tt.dialTo), Port: port})
			if err != nil {
				t.Fatalf("dial failed: %v", err)
			}
			defer sender.Close()

			if _, err := sender.Write([]byte("ping")); err != nil {
				t.Fatalf("write failed: %v", err)
			}

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			buf := make([]byte, 16)
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if string(buf[:n]) != "ping" {
				t.Fatalf("unexpected payload %q", buf[:n])
			}
		})
	}
}

func TestListenLoopbackTCP(t *testing.T) {
	listener, err := ListenLoopbackTCP(1)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	if !addr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("expected loopback address, got %v", addr.IP)
	}
	if addr.Port == 0 {
		t.Fatal("expected resolved port")
	}

	go func() {
		client, err := net.Dial("tcp", addr.String())
		if err == nil {
			client.Write([]byte("hi"))
			client.Close()
		}
	}()

	listener.SetDeadline(time.Now().Add(2 * time.Second))
	server, err := listener.Accept()
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	defer server.Close()

	buf := make([]byte, 2)
	if _, err := io.ReadFull(server, buf); err != nil || string(buf) != "hi" {
		t.Fatalf("unexpected read %q (%v)", buf, err)
	}
}

func TestAdoptStreamFD(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair failed: %v", err)
	}
	peer := os.NewFile(uintptr(fds[1]), "peer")
	defer peer.Close()

	conn, err := AdoptStreamFD(fds[0])
	if err != nil {
		t.Fatalf("adopt failed: %v", err)
	}
	defer conn.Close()

	// Original descriptor must be closed after duplication
	if _, err := unix.GetsockoptInt(fds[0], unix.SOL_SOCKET, unix.SO_TYPE); err == nil {
		t.Fatal("expected original descriptor to be closed")
	}

	peer.Write([]byte("data"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil || string(buf) != "data" {
		t.Fatalf("unexpected read %q (%v)", buf, err)
	}
}

func TestAdoptStreamFDRejects(t *testing.T) {
	t.Run("negative", func(t *testing.T) {
		if _, err := AdoptStreamFD(-1); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("not a socket", func(t *testing.T) {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatal(err)
		}
		defer r.Close()
		defer w.Close()
		if _, err := AdoptStreamFD(int(r.Fd())); err == nil {
			t.Fatal("expected error for pipe descriptor")
		}
	})

	t.Run("datagram socket", func(t *testing.T) {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			t.Fatal(err)
		}
		defer unix.Close(fds[0])
		defer unix.Close(fds[1])
		if _, err := AdoptStreamFD(fds[0]); err == nil {
			t.Fatal("expected error for datagram socket")
		}
	})
}

func TestReceiveBufferAndUnreadBytes(t *testing.T) {
	conn, err := ListenUDP(context.Background(), "127.0.0.1", 0)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	defer conn.Close()

	effective, err := SetReceiveBuffer(conn, 256*1024)
	if err != nil {
		t.Fatalf("set receive buffer failed: %v", err)
	}
	if effective <= 0 {
		t.Fatalf("expected positive effective size, got %d", effective)
	}

	sender, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()
	sender.Write([]byte("12345"))

	deadline := time.Now().Add(2 * time.Second)
	var queued int
	for time.Now().Before(deadline) {
		queued, err = UnreadBytes(conn)
		if err != nil {
			t.Fatalf("unread bytes failed: %v", err)
		}
		if queued > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if queued != 5 {
		t.Fatalf("expected 5 queued bytes, got %d", queued)
	}
}
