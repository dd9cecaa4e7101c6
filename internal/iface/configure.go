package iface

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/hurdlab/pfinet/internal/stack"
)

// Sentinel errors for configuration validation (spec.md §4.I).
var (
	ErrMaskNotContiguous  = errors.New("netmask is not a left-contiguous-ones mask")
	ErrGatewayNotOnSubnet = errors.New("gateway does not match addr & mask")
	ErrBroadcastMismatch  = errors.New("broadcast does not equal addr | ~mask")
	ErrMulticastAddr      = errors.New("address must not be a multicast address")
	ErrNotIPv4            = errors.New("field is not an IPv4 address")
)

// InterfaceSpec is the parse hook's per-interface configuration record
// (spec.md §3, "Parse hook"): requested name, IPv4 fields, and requested
// IPv6 addresses, as accumulated by internal/config's argument walker.
type InterfaceSpec struct {
	Name      string
	Addr      netip.Addr
	Mask      netip.Addr
	Gateway   netip.Addr
	Broadcast netip.Addr
	V6        []netip.Addr
}

// ValidateV4 checks the four IPv4 configuration rules from spec.md §4.I.
// A non-sentinel mask must be left-contiguous-ones; a non-sentinel
// gateway must share addr's network; a non-sentinel broadcast (with a
// non-sentinel mask) must equal addr | ^mask; addr itself must not be a
// multicast address.
func ValidateV4(addr, mask, gateway, broadcast netip.Addr) error {
	for _, a := range []netip.Addr{addr, mask, gateway, broadcast} {
		if a.IsValid() && !IsSentinel(a) && !a.Is4() {
			return fmt.Errorf("validate v4: %w", ErrNotIPv4)
		}
	}

	if addr.IsValid() && isMulticast4(addr) {
		return fmt.Errorf("validate v4: %w", ErrMulticastAddr)
	}

	if !IsSentinel(mask) {
		if !isContiguousMask(mask) {
			return fmt.Errorf("validate v4: %w", ErrMaskNotContiguous)
		}

		if !IsSentinel(gateway) {
			if network(addr, mask) != network(gateway, mask) {
				return fmt.Errorf("validate v4: %w", ErrGatewayNotOnSubnet)
			}
		}

		if !IsSentinel(broadcast) {
			want := broadcastAddr(addr, mask)
			if broadcast != want {
				return fmt.Errorf("validate v4: %w", ErrBroadcastMismatch)
			}
		}
	}

	return nil
}

func isMulticast4(a netip.Addr) bool {
	b := a.As4()
	return b[0]&0xf0 == 0xe0
}

func isContiguousMask(mask netip.Addr) bool {
	b := mask.As4()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	// A left-contiguous-ones mask is ^v+1 a power of two (or v is all
	// ones, or v is zero).
	inv := ^v
	return inv&(inv+1) == 0
}

func network(addr, mask netip.Addr) uint32 {
	a := addr.As4()
	m := mask.As4()
	var out [4]byte
	for i := range out {
		out[i] = a[i] & m[i]
	}
	return uint32(out[0])<<24 | uint32(out[1])<<16 | uint32(out[2])<<8 | uint32(out[3])
}

func broadcastAddr(addr, mask netip.Addr) netip.Addr {
	a := addr.As4()
	m := mask.As4()
	var out [4]byte
	for i := range out {
		out[i] = a[i] | ^m[i]
	}
	return netip.AddrFrom4(out)
}

// DriverFactory creates the driver-specific state for a newly-added
// interface, matching spec.md §4.I's name-prefix dispatch: "tun*" → F,
// the loopback literal → G, otherwise → E.
type DriverFactory func(i *Interface) (any, error)

// Apply builds interfaces from specs in reverse argument order (so the
// stack's internal list ends up in the given order, per spec.md §4.I),
// selecting a driver by name prefix, enabling IPv6 autoconf and a
// link-local address, adding each non-zero non-multicast requested IPv6
// address in Tentative DAD state, bringing the interface up, and marking
// a default route when the gateway is non-sentinel.
func Apply(reg *Registry, stk stack.Stack, specs []InterfaceSpec, newDriver DriverFactory) error {
	for idx := len(specs) - 1; idx >= 0; idx-- {
		spec := specs[idx]

		if IsSentinel(spec.Addr) {
			// spec.md §4.I: "interface is skipped if addr is sentinel".
			continue
		}

		if err := ValidateV4(spec.Addr, spec.Mask, spec.Gateway, spec.Broadcast); err != nil {
			return fmt.Errorf("apply %q: %w", spec.Name, err)
		}

		i := &Interface{Name: spec.Name, DeviceName: spec.Name, Kind: kindFor(spec.Name)}
		reg.Add(i)

		state, err := newDriver(i)
		if err != nil {
			return fmt.Errorf("apply %q: open driver: %w", spec.Name, err)
		}
		i.DriverState = state

		v4 := V4Config{Addr: spec.Addr, Mask: spec.Mask, Gateway: spec.Gateway, Broadcast: spec.Broadcast}
		i.SetV4(v4)

		if err := stk.AddInterface(i.Name, stack.IfaceV4Config(v4)); err != nil {
			return fmt.Errorf("apply %q: add to stack: %w", spec.Name, err)
		}

		if err := stk.EnableIPv6Autoconf(i.Name); err != nil {
			return fmt.Errorf("apply %q: enable ipv6 autoconf: %w", spec.Name, err)
		}
		linkLocal := linkLocalAddr(i.HWAddr)
		if i.AddV6(linkLocal) {
			_ = stk.AddIPv6Address(i.Name, linkLocal)
		}

		for _, v6addr := range spec.V6 {
			if !v6addr.IsValid() || v6addr.IsMulticast() {
				continue
			}
			if i.AddV6(v6addr) {
				_ = stk.AddIPv6Address(i.Name, v6addr)
			}
		}

		if err := stk.SetInterfaceUp(i.Name, true); err != nil {
			return fmt.Errorf("apply %q: set up: %w", spec.Name, err)
		}
		i.SetFlags(i.Flags() | FlagUp | FlagRunning)

		if !IsSentinel(spec.Gateway) {
			_ = stk.SetDefaultRoute(spec.Gateway, false)
		}
	}

	return nil
}

// linkLocalAddr derives a fe80::/64 link-local address from a MAC address
// via the modified EUI-64 algorithm (spec.md §4.I: "IPv6 autoconf + a
// link-local address").
func linkLocalAddr(hw [6]byte) netip.Addr {
	var b [16]byte
	b[0] = 0xfe
	b[1] = 0x80
	b[8] = hw[0] ^ 0x02
	b[9] = hw[1]
	b[10] = hw[2]
	b[11] = 0xff
	b[12] = 0xfe
	b[13] = hw[3]
	b[14] = hw[4]
	b[15] = hw[5]
	return netip.AddrFrom16(b)
}

// kindFor selects a driver by name prefix (spec.md §4.I).
func kindFor(name string) DriverKind {
	switch {
	case strings.HasPrefix(name, "tun"):
		return DriverTUN
	case name == LoopbackName:
		return DriverLoopback
	default:
		return DriverEthernet
	}
}

// Reconfigure validates and applies an ioctl-driven change to an
// existing interface in place, without recreating it (spec.md §4.I). If
// broadcasting is enabled (FlagBroadcast) and the mask's prefix length
// is 30 or shorter, the broadcast address is recomputed from addr|^mask rather
// than taken from the caller.
func Reconfigure(i *Interface, stk stack.Stack, v4 V4Config) error {
	if err := ValidateV4(v4.Addr, v4.Mask, v4.Gateway, v4.Broadcast); err != nil {
		return fmt.Errorf("reconfigure %q: %w", i.Name, err)
	}

	if i.Flags()&FlagBroadcast != 0 && !IsSentinel(v4.Mask) && maskPrefixLen(v4.Mask) <= 30 {
		v4.Broadcast = broadcastAddr(v4.Addr, v4.Mask)
	}

	i.SetV4(v4)
	return stk.AddInterface(i.Name, stack.IfaceV4Config(v4))
}

func maskPrefixLen(mask netip.Addr) int {
	b := mask.As4()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	n := 0
	for bit := uint32(1 << 31); bit != 0 && v&bit != 0; bit >>= 1 {
		n++
	}
	return n
}
