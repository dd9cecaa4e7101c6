// Package tun implements the TUN driver (spec.md §4.F): a
// filesystem-translator-style control object bound to a device node,
// single-occupant open policy, and the bounded TX queue feeding a
// blocking/cancellable client read and select path. Grounded on
// internal/netio/overlay.go's OverlayConn/OverlayReceiver shape,
// generalized from a UDP tunnel socket to a character-device queue.
package tun

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors, matching the RPC-level taxonomy used elsewhere
// (spec.md §7).
var (
	ErrBusy        = errors.New("busy")
	ErrWouldBlock  = errors.New("would block")
	ErrInterrupted = errors.New("interrupted")
)

// InputFunc is the stack's packet-input callback a client write is
// delivered to.
type InputFunc func(payload []byte) error

// QueueMetrics receives queue depth/drop observations. *metrics.Collector
// satisfies this.
type QueueMetrics interface {
	SetTUNQueueDepth(ifName string, n int)
	IncTUNQueueDrops(ifName string)
}

type noopQueueMetrics struct{}

func (noopQueueMetrics) SetTUNQueueDepth(string, int) {}
func (noopQueueMetrics) IncTUNQueueDrops(string)      {}

// Driver owns one TUN interface's control object: the occupancy slot,
// the TX queue, and the stack input callback for client writes.
type Driver struct {
	mu sync.Mutex

	name        string
	occupied    bool
	nonBlocking bool

	queue   *Queue
	input   InputFunc
	metrics QueueMetrics
}

// New creates a TUN driver for the interface named name. Link flags
// preset (UP, RUNNING, POINT-TO-POINT, NOARP) are the caller's
// responsibility to apply to the owning iface.Interface; this type only
// covers the queue and open policy.
func New(name string, input InputFunc) *Driver {
	return &Driver{name: name, queue: NewQueue(), input: input, metrics: noopQueueMetrics{}}
}

// SetMetrics installs the counter sink used by subsequent TX calls.
func (d *Driver) SetMetrics(m QueueMetrics) {
	if m == nil {
		m = noopQueueMetrics{}
	}
	d.mu.Lock()
	d.metrics = m
	d.mu.Unlock()
}

// Open enforces the single-occupant policy: at most one concurrent open
// with read or write permission (spec.md §4.F). Returns a Handle whose
// Close clears the occupancy slot.
func (d *Driver) Open(nonBlocking bool) (*Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.occupied {
		return nil, ErrBusy
	}
	d.occupied = true
	d.nonBlocking = nonBlocking
	return &Handle{drv: d}, nil
}

// release clears the occupancy slot, invoked on the occupying open's
// handle close (the Go analogue of "port destruction").
func (d *Driver) release() {
	d.mu.Lock()
	d.occupied = false
	d.mu.Unlock()
}

// TX is invoked from the stack's link-output callback. It copies the
// outgoing chain into a fresh buffer and enqueues it (spec.md §4.F TX);
// the stack may free its original buffer immediately after this returns.
func (d *Driver) TX(chain []byte) {
	pkt := append([]byte(nil), chain...)
	dropped := d.queue.Enqueue(pkt)
	if dropped {
		d.metrics.IncTUNQueueDrops(d.name)
	}
	d.metrics.SetTUNQueueDepth(d.name, d.queue.Len())
}

// Handle is the per-open client view of a TUN driver, analogous to
// socket.UserView for the socket surface.
type Handle struct {
	drv    *Driver
	closed bool
	mu     sync.Mutex
}

// Read implements the client-read procedure (spec.md §4.F): blocks until
// a packet is available (unless opened non-blocking), copies at most
// min(packet length, len(buf)) bytes, and reports interruption if the
// wait was cancelled.
func (h *Handle) Read(buf []byte, cancel <-chan struct{}) (int, error) {
	pkt, err := h.drv.queue.Dequeue(h.drv.nonBlocking, cancel)
	if err != nil {
		return 0, err
	}
	n := copy(buf, pkt)
	return n, nil
}

// Write implements the client-write procedure (spec.md §4.F): parses the
// bytes into a single segment and passes it to the stack's input
// callback.
func (h *Handle) Write(buf []byte) (int, error) {
	payload := append([]byte(nil), buf...)
	if err := h.drv.input(payload); err != nil {
		return 0, fmt.Errorf("tun write: stack input: %w", err)
	}
	return len(buf), nil
}

// SelectMask mirrors stack.SelectMask without importing the stack
// package, keeping the driver free of the stack dependency.
type SelectMask uint8

const (
	SelectRead SelectMask = 1 << iota
	SelectWrite
)

// Select reports which of the requested bits are currently satisfiable.
// Write is always satisfiable; read is satisfiable iff the queue is
// non-empty (spec.md §4.F Select).
func (h *Handle) Select(want SelectMask) SelectMask {
	var got SelectMask
	if want&SelectWrite != 0 {
		got |= SelectWrite
	}
	if want&SelectRead != 0 && h.drv.queue.Readable() {
		got |= SelectRead
	}
	return got
}

// Wait blocks until the queue's select condition changes, cancel fires,
// or timeout fires — used by a caller implementing the blocking half of
// Select when Select's immediate check reports nothing ready.
func (h *Handle) Wait(cancel <-chan struct{}, timeout <-chan struct{}) {
	h.drv.queue.Wait(cancel, timeout)
}

// Close releases this handle's occupancy of the driver. Idempotent.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.drv.release()
}

// QueueLen exposes the current queue depth, for MIB/introspection.
func (d *Driver) QueueLen() int {
	return d.queue.Len()
}
