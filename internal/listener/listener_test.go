package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"statefeed/internal/delivery"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"statefeed/internal/transport"
	"statefeed/pkg/protocol"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

const testPoll = 50 * time.Millisecond

func testContext() (ctx context.Context) {
	ctx = logctx.New(context.Background(), global.NSTest, global.VerbosityDebug, nil)
	return
}

func udpConfig() (cfg transport.Config) {
	cfg = transport.Config{Type: transport.KindUDP, Address: "127.0.0.1", Port: 0, PollInterval: testPoll}
	return
}

func dialUDP(t *testing.T, port int) (conn net.Conn) {
	t.Helper()
	conn, err := net.Dial("udp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return
}

// Opens a socketpair and returns the listener side descriptor and the producer side file
func streamPair(t *testing.T) (fd int, producer *os.File) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair failed: %v", err)
	}
	fd = fds[0]
	producer = os.NewFile(uintptr(fds[1]), "producer")
	return
}

func waitUntil(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", desc)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func stopAndWait(t *testing.T, instance *Instance) (err error) {
	t.Helper()
	instance.Stop()
	select {
	case <-instance.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
	err = instance.Wait()
	return
}

func TestUDPLive(t *testing.T) {
	ctx := testContext()
	slot := delivery.NewLiveSlot(nil, nil)
	instance := New([]string{global.NSTest}, udpConfig(), slot)

	if instance.State() != Idle {
		t.Fatalf("initial state = %s", instance.State())
	}
	if err := instance.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if instance.State() != Running {
		t.Fatalf("state after start = %s", instance.State())
	}
	if instance.Port() == 0 {
		t.Fatal("expected resolved port")
	}

	sender := dialUDP(t, instance.Port())
	sender.Write([]byte(`{"seq":1}`))
	waitUntil(t, "first state", func() bool {
		state, ok := slot.Latest()
		return ok && state.Document.Get("seq").Int() == 1
	})
	first, _ := slot.Latest()

	const gap = 60 * time.Millisecond
	time.Sleep(gap)
	sender.Write([]byte(`{"seq":2}`))
	waitUntil(t, "second state", func() bool {
		state, ok := slot.Latest()
		return ok && state.Document.Get("seq").Int() == 2
	})

	second, _ := slot.Latest()
	if second.Interval < gap {
		t.Fatalf("interval %s shorter than send gap %s", second.Interval, gap)
	}
	if want := second.ReceivedAt.Sub(first.ReceivedAt); second.Interval != want {
		t.Fatalf("interval %s not measured from previous state (%s)", second.Interval, want)
	}
	if !instance.HasReceivedAnyMessage() {
		t.Fatal("expected received flag")
	}

	if err := stopAndWait(t, instance); err != nil {
		t.Fatalf("unexpected terminal error: %v", err)
	}
	if instance.State() != Stopped {
		t.Fatalf("final state = %s", instance.State())
	}
	if instance.ConnectionClosed() {
		t.Fatal("requested stop must not mark the connection closed")
	}
}

func TestUDPBuffered(t *testing.T) {
	ctx := testContext()
	queue := delivery.NewQueue(nil)
	instance := New(nil, udpConfig(), queue)
	if err := instance.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	sender := dialUDP(t, instance.Port())
	const count = 5
	for i := 0; i < count; i++ {
		sender.Write([]byte(fmt.Sprintf(`{"seq":%d}`, i)))
		time.Sleep(time.Millisecond)
	}
	waitUntil(t, "all states queued", func() bool { return queue.Len() == count })

	for i := 0; i < count; i++ {
		state, ok := queue.Pop()
		if !ok {
			t.Fatalf("pop %d failed", i)
		}
		if got := state.Document.Get("seq").Int(); got != int64(i) {
			t.Fatalf("pop %d: seq %d", i, got)
		}
	}
	if _, ok := queue.Pop(); ok {
		t.Fatal("expected empty queue")
	}

	if err := stopAndWait(t, instance); err != nil {
		t.Fatalf("unexpected terminal error: %v", err)
	}
}

func TestMalformedDoesNotMoveBaseline(t *testing.T) {
	ctx := testContext()
	queue := delivery.NewQueue(nil)
	instance := New(nil, udpConfig(), queue)
	if err := instance.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stopAndWait(t, instance)

	sender := dialUDP(t, instance.Port())
	sender.Write([]byte(`{"seq":1}`))
	waitUntil(t, "first state", func() bool { return queue.Len() == 1 })
	first, _ := queue.Pop()

	const gap = 40 * time.Millisecond
	time.Sleep(gap)
	sender.Write([]byte(`{"seq": oops}`))
	waitUntil(t, "malformed message counted", func() bool { return instance.Metrics.MalformedMessage.Load() == 1 })
	time.Sleep(gap)
	sender.Write([]byte(`{"seq":2}`))
	waitUntil(t, "second state", func() bool { return queue.Len() == 1 })

	second, _ := queue.Pop()
	if second.Document.Get("seq").Int() != 2 {
		t.Fatalf("unexpected state %s", second.Document.Raw())
	}
	if second.Interval < 2*gap {
		t.Fatalf("interval %s was reset by the malformed message", second.Interval)
	}
	if want := second.ReceivedAt.Sub(first.ReceivedAt); second.Interval != want {
		t.Fatalf("interval %s, want %s", second.Interval, want)
	}

	lines := strings.Join(logctx.GetLogger(ctx).GetFormattedLogLines(), "\n")
	if !strings.Contains(lines, "Received JSON: ") || !strings.Contains(lines, "^ HERE") {
		t.Fatalf("expected decode diagnostic in log, got:\n%s", lines)
	}
}

func TestMalformedOnlySetsReceived(t *testing.T) {
	ctx := testContext()
	slot := delivery.NewLiveSlot(nil, nil)
	instance := New(nil, udpConfig(), slot)
	if err := instance.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stopAndWait(t, instance)

	if instance.HasReceivedAnyMessage() {
		t.Fatal("flag set before any message")
	}
	dialUDP(t, instance.Port()).Write([]byte(`{"broken":`))
	waitUntil(t, "received flag", instance.HasReceivedAnyMessage)

	if _, ok := slot.Latest(); ok {
		t.Fatal("malformed message must not reach the slot")
	}
}

func TestStreamFrames(t *testing.T) {
	ctx := testContext()
	fd, producer := streamPair(t)
	queue := delivery.NewQueue(nil)
	instance := New(nil, transport.Config{Type: transport.KindFD, FD: fd, PollInterval: testPoll}, queue)
	if err := instance.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Empty frame, truncated json, valid, oversized, valid
	producer.Write([]byte{0, 0, 0, 0})
	protocol.WriteFrame(producer, []byte(`{"a":`))
	protocol.WriteFrame(producer, []byte(`{"seq":1}`))
	producer.Write(protocol.AppendFrame(nil, make([]byte, protocol.MaxMessageLen+1)))
	protocol.WriteFrame(producer, []byte(`{"seq":2}`))

	waitUntil(t, "two states", func() bool { return queue.Len() == 2 })
	if instance.ConnectionClosed() {
		t.Fatal("connection must stay open after a malformed frame")
	}
	if instance.Metrics.EmptyFrames.Load() != 1 || instance.Metrics.OversizedFrames.Load() != 1 {
		t.Fatalf("empty=%d oversized=%d", instance.Metrics.EmptyFrames.Load(), instance.Metrics.OversizedFrames.Load())
	}
	if instance.Metrics.MalformedMessage.Load() != 1 {
		t.Fatalf("malformed=%d", instance.Metrics.MalformedMessage.Load())
	}

	for want := int64(1); want <= 2; want++ {
		state, _ := queue.Pop()
		if got := state.Document.Get("seq").Int(); got != want {
			t.Fatalf("got seq %d want %d", got, want)
		}
	}

	producer.Close()
	select {
	case <-instance.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after peer hangup")
	}
	if err := instance.Wait(); err != nil {
		t.Fatalf("peer hangup must be a clean stop, got %v", err)
	}
	if !instance.ConnectionClosed() {
		t.Fatal("expected connection closed flag")
	}
}

func TestEmptyFrameKeepsBaseline(t *testing.T) {
	ctx := testContext()
	fd, producer := streamPair(t)
	defer producer.Close()
	queue := delivery.NewQueue(nil)
	instance := New(nil, transport.Config{Type: transport.KindFD, FD: fd, PollInterval: testPoll}, queue)
	if err := instance.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stopAndWait(t, instance)

	protocol.WriteFrame(producer, []byte(`{"seq":1}`))
	waitUntil(t, "first state", func() bool { return queue.Len() == 1 })
	time.Sleep(20 * time.Millisecond)

	producer.Write([]byte{0, 0, 0, 0})
	waitUntil(t, "empty frame", func() bool { return instance.Metrics.EmptyFrames.Load() == 1 })
	time.Sleep(20 * time.Millisecond)

	protocol.WriteFrame(producer, []byte(`{"seq":2}`))
	waitUntil(t, "second state", func() bool { return queue.Len() == 2 })

	first, _ := queue.Pop()
	second, _ := queue.Pop()
	if got := second.ReceivedAt.Sub(first.ReceivedAt); second.Interval != got {
		t.Fatalf("interval %s must span back to the previous state (%s)", second.Interval, got)
	}
	if instance.Metrics.MalformedMessage.Load() != 0 {
		t.Fatalf("empty frame reached the decoder: malformed=%d", instance.Metrics.MalformedMessage.Load())
	}
	if instance.Metrics.ValidMessages.Load() != 2 {
		t.Fatalf("valid=%d", instance.Metrics.ValidMessages.Load())
	}
}

func TestStreamTruncated(t *testing.T) {
	ctx := testContext()
	fd, producer := streamPair(t)
	instance := New(nil, transport.Config{Type: transport.KindFD, FD: fd, PollInterval: testPoll}, delivery.NewQueue(nil))
	if err := instance.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	header := protocol.EncodeHeader(100)
	producer.Write(header[:])
	producer.Write([]byte(`{"partial"`))
	producer.Close()

	select {
	case <-instance.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
	if err := instance.Wait(); !errors.Is(err, protocol.ErrTruncatedFrame) {
		t.Fatalf("expected ErrTruncatedFrame, got %v", err)
	}
	if !instance.ConnectionClosed() {
		t.Fatal("expected connection closed flag")
	}
}

func TestStopWithinPollInterval(t *testing.T) {
	instance := New(nil, udpConfig(), delivery.NewLiveSlot(nil, nil))
	if err := instance.Start(testContext()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	time.Sleep(testPoll / 2)
	requested := time.Now()
	instance.Stop()
	if state := instance.State(); state != Stopping && state != Stopped {
		t.Fatalf("state after Stop = %s", state)
	}
	instance.Stop() // idempotent

	if err := instance.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(requested); elapsed > 2*testPoll {
		t.Fatalf("stop took %s", elapsed)
	}
}

func TestContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext())
	instance := New(nil, udpConfig(), delivery.NewLiveSlot(nil, nil))
	if err := instance.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()

	select {
	case <-instance.Done():
	case <-time.After(time.Second):
		t.Fatal("listener ignored context cancellation")
	}
}

func TestStartErrors(t *testing.T) {
	ctx := testContext()

	t.Run("bind failure", func(t *testing.T) {
		occupied, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			t.Fatal(err)
		}
		defer occupied.Close()

		cfg := udpConfig()
		cfg.Port = occupied.LocalAddr().(*net.UDPAddr).Port
		instance := New(nil, cfg, delivery.NewQueue(nil))

		err = instance.Start(ctx)
		var bindErr *transport.BindError
		if !errors.As(err, &bindErr) {
			t.Fatalf("expected BindError, got %v", err)
		}
		if instance.State() != Stopped {
			t.Fatalf("state = %s", instance.State())
		}
		if !errors.As(instance.Wait(), &bindErr) {
			t.Fatal("Wait must return the bind error")
		}
	})

	t.Run("started twice", func(t *testing.T) {
		instance := New(nil, udpConfig(), delivery.NewQueue(nil))
		if err := instance.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer stopAndWait(t, instance)
		if err := instance.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
			t.Fatalf("expected ErrAlreadyStarted, got %v", err)
		}
	})

	t.Run("stop before start", func(t *testing.T) {
		instance := New(nil, udpConfig(), delivery.NewQueue(nil))
		instance.Stop()
		if err := instance.Wait(); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if instance.State() != Stopped {
			t.Fatalf("state = %s", instance.State())
		}
	})
}

func TestCollectMetrics(t *testing.T) {
	instance := New([]string{global.NSTest}, udpConfig(), delivery.NewQueue(nil))
	instance.Metrics.ValidMessages.Add(3)
	instance.Metrics.MalformedMessage.Add(1)
	instance.Metrics.DecodeSumNs.Add(400)

	values := make(map[string]any)
	for _, metric := range instance.CollectMetrics(time.Second) {
		values[metric.Name] = metric.Value.Raw
		if strings.Join(metric.Namespace, "/") != global.NSTest+"/"+global.NSListen {
			t.Fatalf("unexpected namespace %v", metric.Namespace)
		}
	}
	if values["valid_messages_total"] != uint64(3) || values["malformed_messages_total"] != uint64(1) {
		t.Fatalf("unexpected counters %v", values)
	}
	if values["decode_time_avg_ns"] != uint64(100) {
		t.Fatalf("unexpected average %v", values["decode_time_avg_ns"])
	}
}
