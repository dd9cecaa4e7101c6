// Package ethernet implements the Ethernet driver (spec.md §4.E):
// device-port open/close lifecycle, a BPF-equivalent accept filter,
// single-packet TX with reopen-once-on-failure, and RX assembly for the
// packet-ingest thread. Grounded on internal/netio/rawsock_linux.go's
// raw-socket option dance, generalized from UDP datagram sockets to
// AF_PACKET-style raw Ethernet framing.
package ethernet

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the per-interface driver lifecycle (spec.md §4.E).
type State uint8

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpening:
		return "Opening"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// Sentinel errors.
var (
	ErrFatalOpen     = errors.New("fatal device open failure")
	ErrInvalidDest   = errors.New("invalid destination")
	ErrServerDied    = errors.New("server died")
	ErrSendAborted   = errors.New("send aborted after reopen failure")
	ErrFilterDropped = errors.New("frame dropped by accept filter")
)

// EtherType enumerates the frame types the accept filter admits.
type EtherType uint16

const (
	EtherTypeARP  EtherType = 0x0806
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeIPv6 EtherType = 0x86DD
)

// headerLen is the Ethernet link-header length the filter accounts for.
const headerLen = 14

// Device abstracts the underlying device port so the driver can be
// exercised without CAP_NET_RAW; a real implementation binds an
// AF_PACKET raw socket (see rawsock_linux.go-style construction in a
// platform-specific file alongside this one in a full build).
type Device interface {
	Write(frame []byte) error
	Close() error
}

// Counters are the driver's MIB byte/frame counters (spec.md §4.E).
type Counters struct {
	BytesTX     atomic.Uint64
	BytesRX     atomic.Uint64
	UnicastRX   atomic.Uint64
	MulticastRX atomic.Uint64
}

// Filter is the translator-level analogue of the BPF program spec.md
// §4.E describes: accept ARP/IPv4/IPv6 frames up to a payload cap, drop
// everything else. There is no real BPF device layer to program in this
// implementation, so the filter is a plain Go predicate evaluated before
// RX assembly.
type Filter struct {
	mu        sync.RWMutex
	acceptLen int // MTU + headerLen, the filter's "accept-length immediate"
}

// NewFilter creates a filter sized for the given MTU.
func NewFilter(mtu int) *Filter {
	return &Filter{acceptLen: mtu + headerLen}
}

// UpdateMTU rewrites the filter's accept-length, mirroring spec.md
// §4.E's "Update-MTU: rewrite the BPF program's accept-length immediate
// to MTU + link-header".
func (f *Filter) UpdateMTU(mtu int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptLen = mtu + headerLen
}

// Accept reports whether a frame of the given ethertype and total length
// passes the filter.
func (f *Filter) Accept(etherType EtherType, length int) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	switch etherType {
	case EtherTypeARP, EtherTypeIPv4, EtherTypeIPv6:
		return length <= f.acceptLen
	default:
		return false
	}
}

// Driver owns one Ethernet interface's device port, filter, and MIB
// counters.
type Driver struct {
	mu    sync.Mutex
	state State

	dev    Device
	open   func() (Device, error)
	filter *Filter

	Counters Counters
}

// Open runs the open procedure from spec.md §4.E: look up the device,
// call the open callback, install the filter. If open fails and there
// is no fallback, the failure is fatal per spec.md §7.
func Open(mtu int, open func() (Device, error)) (*Driver, error) {
	d := &Driver{state: StateOpening, open: open, filter: NewFilter(mtu)}

	dev, err := open()
	if err != nil {
		d.state = StateClosed
		return nil, fmt.Errorf("open ethernet device: %w: %w", err, ErrFatalOpen)
	}

	d.dev = dev
	d.state = StateOpen
	return d, nil
}

// TX serializes a single-packet buffer and writes it to the device.
// Policy: never chain multiple packets across the device boundary. On
// "invalid destination" or "server died" the device is closed and
// reopened once; a second failure aborts the send (spec.md §4.E).
func (d *Driver) TX(frame []byte, multicast bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateOpen {
		return fmt.Errorf("tx on %s device: %w", d.state, ErrSendAborted)
	}

	err := d.dev.Write(frame)
	if err == nil {
		d.Counters.BytesTX.Add(uint64(len(frame))) //nolint:gosec
		return nil
	}

	if !errors.Is(err, ErrInvalidDest) && !errors.Is(err, ErrServerDied) {
		return fmt.Errorf("tx: %w", err)
	}

	if reopenErr := d.reopenLocked(); reopenErr != nil {
		return fmt.Errorf("tx: reopen after %w: %w", err, ErrSendAborted)
	}

	if err := d.dev.Write(frame); err != nil {
		return fmt.Errorf("tx: second attempt: %w: %w", err, ErrSendAborted)
	}

	d.Counters.BytesTX.Add(uint64(len(frame))) //nolint:gosec
	return nil
}

func (d *Driver) reopenLocked() error {
	_ = d.dev.Close()

	dev, err := d.open()
	if err != nil {
		d.state = StateClosed
		return fmt.Errorf("reopen device: %w", err)
	}
	d.dev = dev
	return nil
}

// RX is invoked from the ingest thread (spec.md §4.H) with a raw frame.
// It filters by ethertype/length, updates MIB counters, and returns the
// payload for handoff to the stack's input callback.
func (d *Driver) RX(frame []byte, etherType EtherType, multicast bool) ([]byte, error) {
	if !d.filter.Accept(etherType, len(frame)) {
		return nil, fmt.Errorf("rx: %w", ErrFilterDropped)
	}
	if len(frame) < headerLen {
		return nil, fmt.Errorf("rx: %w", ErrFilterDropped)
	}

	d.Counters.BytesRX.Add(uint64(len(frame))) //nolint:gosec
	if multicast {
		d.Counters.MulticastRX.Add(1)
	} else {
		d.Counters.UnicastRX.Add(1)
	}

	return frame[headerLen:], nil
}

// UpdateMTU refreshes the filter's accept-length (spec.md §4.E).
func (d *Driver) UpdateMTU(mtu int) {
	d.filter.UpdateMTU(mtu)
}

// State returns the driver's current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close transitions Open -> Closing -> Closed, releasing the device.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateClosed {
		return nil
	}
	d.state = StateClosing
	err := d.dev.Close()
	d.state = StateClosed
	if err != nil {
		return fmt.Errorf("close ethernet device: %w", err)
	}
	return nil
}
