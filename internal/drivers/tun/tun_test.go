package tun

import (
	"errors"
	"testing"
)

func TestOpenBusyOnSecondOccupant(t *testing.T) {
	d := New("tun0", func([]byte) error { return nil })

	h1, err := d.Open(false)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}

	if _, err := d.Open(false); !errors.Is(err, ErrBusy) {
		t.Fatalf("second open = %v, want ErrBusy", err)
	}

	h1.Close()

	if _, err := d.Open(false); err != nil {
		t.Fatalf("open after close: %v", err)
	}
}

func TestTXThenReadExactBytes(t *testing.T) {
	d := New("tun0", func([]byte) error { return nil })
	h, err := d.Open(false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	frame := make([]byte, 1500)
	for i := range frame {
		frame[i] = byte(i)
	}
	d.TX(frame)

	buf := make([]byte, 1500)
	n, err := h.Read(buf, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 1500 {
		t.Fatalf("n = %d, want 1500", n)
	}
	for i := range frame {
		if buf[i] != frame[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, buf[i], frame[i])
		}
	}
}

func TestWriteDeliversToStackInput(t *testing.T) {
	var delivered []byte
	d := New("tun0", func(p []byte) error {
		delivered = p
		return nil
	})
	h, err := d.Open(false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	frame := []byte{1, 2, 3, 4}
	n, err := h.Write(frame)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("n = %d, want %d", n, len(frame))
	}
	if len(delivered) != 4 {
		t.Fatalf("delivered = %v, want 4 bytes", delivered)
	}
}

func TestReadNonBlockingWouldBlock(t *testing.T) {
	d := New("tun0", func([]byte) error { return nil })
	h, err := d.Open(true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	buf := make([]byte, 64)
	if _, err := h.Read(buf, nil); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("read on empty nonblocking queue = %v, want ErrWouldBlock", err)
	}
}

func TestReadInterruptedByCancel(t *testing.T) {
	d := New("tun0", func([]byte) error { return nil })
	h, err := d.Open(false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	cancel := make(chan struct{})
	close(cancel)

	buf := make([]byte, 64)
	if _, err := h.Read(buf, cancel); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("read with closed cancel = %v, want ErrInterrupted", err)
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	// spec.md S5: push 200 TX packets with no reader; queue settles at
	// 128, the oldest 72 are dropped, the newest 128 survive in FIFO
	// order.
	q := NewQueue()
	for i := 0; i < 200; i++ {
		q.Enqueue([]byte{byte(i)})
	}

	if got := q.Len(); got != maxQueueLen {
		t.Fatalf("Len() = %d, want %d", got, maxQueueLen)
	}

	for want := 72; want < 200; want++ {
		pkt, err := q.Dequeue(false, nil)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if pkt[0] != byte(want) {
			t.Fatalf("dequeue order: got %d, want %d", pkt[0], want)
		}
	}
}

func TestSelectWriteAlwaysReady(t *testing.T) {
	d := New("tun0", func([]byte) error { return nil })
	h, err := d.Open(false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	got := h.Select(SelectRead | SelectWrite)
	if got&SelectWrite == 0 {
		t.Fatal("write should always be satisfiable")
	}
	if got&SelectRead != 0 {
		t.Fatal("read should not be satisfiable on empty queue")
	}

	d.TX([]byte{1})
	got = h.Select(SelectRead)
	if got&SelectRead == 0 {
		t.Fatal("read should be satisfiable once queue is non-empty")
	}
}

type recordingQueueMetrics struct {
	depth map[string]int
	drops map[string]int
}

func newRecordingQueueMetrics() *recordingQueueMetrics {
	return &recordingQueueMetrics{depth: map[string]int{}, drops: map[string]int{}}
}

func (r *recordingQueueMetrics) SetTUNQueueDepth(ifName string, n int) { r.depth[ifName] = n }
func (r *recordingQueueMetrics) IncTUNQueueDrops(ifName string)       { r.drops[ifName]++ }

func TestTXReportsQueueDepth(t *testing.T) {
	d := New("tun0", func([]byte) error { return nil })
	m := newRecordingQueueMetrics()
	d.SetMetrics(m)

	d.TX([]byte{1, 2, 3})
	d.TX([]byte{4, 5, 6})

	if got := m.depth["tun0"]; got != 2 {
		t.Fatalf("depth = %d, want 2", got)
	}
	if got := m.drops["tun0"]; got != 0 {
		t.Fatalf("drops = %d, want 0", got)
	}
}

func TestTXReportsQueueDropsOnOverflow(t *testing.T) {
	// spec.md S5: once the queue is at capacity, further TX evicts the
	// oldest entry and must be counted as a drop.
	d := New("tun0", func([]byte) error { return nil })
	m := newRecordingQueueMetrics()
	d.SetMetrics(m)

	for i := 0; i < maxQueueLen; i++ {
		d.TX([]byte{byte(i)})
	}
	if got := m.drops["tun0"]; got != 0 {
		t.Fatalf("drops before overflow = %d, want 0", got)
	}

	d.TX([]byte{0xff})

	if got := m.drops["tun0"]; got != 1 {
		t.Fatalf("drops after overflow = %d, want 1", got)
	}
	if got := m.depth["tun0"]; got != maxQueueLen {
		t.Fatalf("depth after overflow = %d, want %d", got, maxQueueLen)
	}
}

func TestDevicePath(t *testing.T) {
	if got := DevicePath("tun0"); got != "/dev/tun0" {
		t.Fatalf("DevicePath(tun0) = %q", got)
	}
	if got := DevicePath("/dev/custom/tun7"); got != "/dev/custom/tun7" {
		t.Fatalf("DevicePath passthrough = %q", got)
	}
}
