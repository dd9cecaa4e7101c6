// Package iface implements the interface registry (spec.md §4.D), the
// interface-configuration engine (§4.I), and interface operational-state
// tracking, generalizing internal/bfd/manager.go's table-of-objects
// shape from BFD sessions to network interfaces.
package iface

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
)

// DriverKind identifies which of the three driver variants backs an
// interface.
type DriverKind int

const (
	DriverEthernet DriverKind = iota
	DriverTUN
	DriverLoopback
)

// Flag bits, a subset of the BSD-derived IFF_* flags spec.md names.
type Flag uint32

const (
	FlagUp Flag = 1 << iota
	FlagRunning
	FlagPointToPoint
	FlagNoARP
	FlagLoopback
	FlagBroadcast
)

// V6State is the duplicate-address-detection state of one IPv6 address
// slot.
type V6State int

const (
	V6Tentative V6State = iota
	V6Preferred
	V6Deprecated
)

// V6Addr is one entry in an interface's fixed-size IPv6 address array.
type V6Addr struct {
	Addr  netip.Addr
	State V6State
}

// V4Config holds an interface's IPv4 addr/mask/gateway/broadcast.
// SentinelV4 (the all-ones value) marks a field as unset, matching
// spec.md §3's "sentinel address" for IPv4 fields.
type V4Config struct {
	Addr      netip.Addr
	Mask      netip.Addr
	Gateway   netip.Addr
	Broadcast netip.Addr
}

// SentinelV4 is the all-ones 32-bit value used as "unset" for IPv4
// fields (spec.md glossary: "Sentinel address").
var SentinelV4 = netip.MustParseAddr("255.255.255.255")

// IsSentinel reports whether addr is the IPv4 sentinel.
func IsSentinel(addr netip.Addr) bool {
	return !addr.IsValid() || addr == SentinelV4
}

// Interface is one entry in the registry: a driver-backed network
// interface with its link-layer and IP configuration state.
type Interface struct {
	Name       string
	DeviceName string
	Kind       DriverKind
	LinkType   uint16
	MTU        int
	HWAddr     [6]byte

	mu    sync.RWMutex
	flags Flag
	v4    V4Config
	v6    [maxV6Addrs]V6Addr
	v6n   int

	// DriverState is opaque to the registry; it is populated and
	// consumed by the owning driver package (ethernet/tun/loopback).
	DriverState any

	// ReceiveHandle identifies this interface to the packet-ingest
	// thread (spec.md §4.H): the handle the ingest pump matches
	// incoming device-delivery messages against.
	ReceiveHandle uint64
}

// maxV6Addrs bounds the per-interface IPv6 address slot count.
const maxV6Addrs = 16

// Flags returns a snapshot of the interface's flag bits.
func (i *Interface) Flags() Flag {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.flags
}

// SetFlags replaces the interface's flag bits.
func (i *Interface) SetFlags(f Flag) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.flags = f
}

// V4 returns a snapshot of the interface's IPv4 configuration.
func (i *Interface) V4() V4Config {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.v4
}

// SetV4 replaces the interface's IPv4 configuration in place, without
// recreating the interface (spec.md §4.I, "Reconfigure via ioctl").
func (i *Interface) SetV4(v4 V4Config) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.v4 = v4
}

// AddV6 appends an IPv6 address in Tentative DAD state. Returns false if
// the interface's address slots are full.
func (i *Interface) AddV6(addr netip.Addr) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.v6n >= maxV6Addrs {
		return false
	}
	i.v6[i.v6n] = V6Addr{Addr: addr, State: V6Tentative}
	i.v6n++
	return true
}

// V6Addrs returns a snapshot of the interface's configured IPv6
// addresses.
func (i *Interface) V6Addrs() []V6Addr {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]V6Addr, i.v6n)
	copy(out, i.v6[:i.v6n])
	return out
}

// Sentinel errors for registry operations.
var (
	// ErrNoSuchDevice indicates an ioctl or lookup named an interface
	// not in the registry.
	ErrNoSuchDevice = errors.New("no such device")

	// ErrLoopbackImmutable indicates an attempt to remove the loopback
	// interface, which spec.md §3 requires to always be present and
	// first.
	ErrLoopbackImmutable = errors.New("loopback interface cannot be removed")
)

// LoopbackName is the well-known system name of the loopback interface.
const LoopbackName = "lo"

// Registry is the ordered list of interfaces, their driver state, and
// add/remove/update operations (spec.md §4.D). Mutated only by the
// configuration engine during startup and by interface ioctls; readers
// outside those paths observe a snapshot (spec.md §5).
type Registry struct {
	mu    sync.RWMutex
	order []string
	byName map[string]*Interface
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Interface)}
}

// Add inserts iface into the registry. The loopback interface, if
// present, is always kept first (spec.md §3 invariant) regardless of
// insertion order.
func (r *Registry) Add(i *Interface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[i.Name]; exists {
		return
	}
	r.byName[i.Name] = i

	if i.Name == LoopbackName {
		r.order = append([]string{i.Name}, r.order...)
		return
	}
	r.order = append(r.order, i.Name)
}

// Remove deletes the named interface. Removing the loopback interface is
// rejected.
func (r *Registry) Remove(name string) error {
	if name == LoopbackName {
		return fmt.Errorf("remove %q: %w", name, ErrLoopbackImmutable)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; !exists {
		return fmt.Errorf("remove %q: %w", name, ErrNoSuchDevice)
	}
	delete(r.byName, name)

	for idx, n := range r.order {
		if n == name {
			r.order = append(r.order[:idx], r.order[idx+1:]...)
			break
		}
	}
	return nil
}

// Lookup returns the named interface, or ErrNoSuchDevice.
func (r *Registry) Lookup(name string) (*Interface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("lookup %q: %w", name, ErrNoSuchDevice)
	}
	return i, nil
}

// LookupByReceiveHandle finds the interface whose receive handle matches
// h, used by the packet-ingest thread (spec.md §4.H) to route a
// device-delivery message. Returns nil if no interface matches (the
// interface has since been closed).
func (r *Registry) LookupByReceiveHandle(h uint64) *Interface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		i := r.byName[name]
		if i.ReceiveHandle == h {
			return i
		}
	}
	return nil
}

// List returns a snapshot of the registry in registration order, with
// the loopback interface always first per spec.md §3.
func (r *Registry) List() []*Interface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Interface, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
