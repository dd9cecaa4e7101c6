// ifctl.go implements the interface-ioctl surface (spec.md §4.L) as one
// method per ioctl. Requests reach these methods through the opcode
// switch in ifctladapt.go; the table in ifctl_table.go is not used for
// dispatch (nothing calls lookupIfctl).
package rpc

import (
	"fmt"
	"net/netip"

	"github.com/hurdlab/pfinet/internal/iface"
	"github.com/hurdlab/pfinet/internal/translator"
)

// maxIfNameLen is the name truncation length spec.md §4.L specifies
// ("zero-terminated name, truncated at 15 chars").
const maxIfNameLen = 15

// IfctlSurface implements spec.md §4.L against a *translator.Context.
type IfctlSurface struct {
	ctx *translator.Context

	// RefreshFilter is called after a successful SIOCSIFMTU on an
	// Ethernet-backed interface (spec.md §4.L: "refresh its filter (E
	// only)"). Wired by cmd/pfinet to the owning ethernet.Driver.
	RefreshFilter func(i *iface.Interface, mtu int)
}

// NewIfctlSurface builds an interface-ioctl surface.
func NewIfctlSurface(ctx *translator.Context, refreshFilter func(i *iface.Interface, mtu int)) *IfctlSurface {
	return &IfctlSurface{ctx: ctx, RefreshFilter: refreshFilter}
}

func truncName(name string) string {
	if len(name) > maxIfNameLen {
		return name[:maxIfNameLen]
	}
	return name
}

func (s *IfctlSurface) lookup(name string) (*iface.Interface, error) {
	i, err := s.ctx.Ifaces.Lookup(truncName(name))
	if err != nil {
		return nil, fmt.Errorf("ifctl: %w", ErrNoSuchDevice)
	}
	return i, nil
}

// GetAddr implements SIOCGIFADDR.
func (s *IfctlSurface) GetAddr(name string) (netip.Addr, error) {
	i, err := s.lookup(name)
	if err != nil {
		return netip.Addr{}, err
	}
	return i.V4().Addr, nil
}

// GetNetmask implements SIOCGIFNETMASK.
func (s *IfctlSurface) GetNetmask(name string) (netip.Addr, error) {
	i, err := s.lookup(name)
	if err != nil {
		return netip.Addr{}, err
	}
	return i.V4().Mask, nil
}

// GetBrdAddr implements SIOCGIFBRDADDR.
func (s *IfctlSurface) GetBrdAddr(name string) (netip.Addr, error) {
	i, err := s.lookup(name)
	if err != nil {
		return netip.Addr{}, err
	}
	return i.V4().Broadcast, nil
}

// GetDstAddr implements SIOCGIFDSTADDR: always unsupported (spec.md
// §4.L).
func (s *IfctlSurface) GetDstAddr(string) (netip.Addr, error) {
	return netip.Addr{}, fmt.Errorf("SIOCGIFDSTADDR: %w", ErrUnsupportedOperation)
}

// setSlot applies a single IPv4 field change via the configuration
// engine's Reconfigure, requiring root (spec.md §4.L SIOCSIF*).
func (s *IfctlSurface) setSlot(name string, callerIsRoot bool, mutate func(v4 *iface.V4Config)) error {
	if !callerIsRoot {
		return fmt.Errorf("ifctl set: %w", ErrAccessDenied)
	}
	i, err := s.lookup(name)
	if err != nil {
		return err
	}

	v4 := i.V4()
	mutate(&v4)
	if err := iface.Reconfigure(i, s.ctx.Stack, v4); err != nil {
		return fmt.Errorf("ifctl set: %w", err)
	}
	return nil
}

// SetAddr implements SIOCSIFADDR.
func (s *IfctlSurface) SetAddr(name string, callerIsRoot bool, addr netip.Addr) error {
	return s.setSlot(name, callerIsRoot, func(v4 *iface.V4Config) { v4.Addr = addr })
}

// SetNetmask implements SIOCSIFNETMASK.
func (s *IfctlSurface) SetNetmask(name string, callerIsRoot bool, mask netip.Addr) error {
	return s.setSlot(name, callerIsRoot, func(v4 *iface.V4Config) { v4.Mask = mask })
}

// SetBrdAddr implements SIOCSIFBRDADDR.
func (s *IfctlSurface) SetBrdAddr(name string, callerIsRoot bool, bcast netip.Addr) error {
	return s.setSlot(name, callerIsRoot, func(v4 *iface.V4Config) { v4.Broadcast = bcast })
}

// GetFlags implements SIOCGIFFLAGS.
func (s *IfctlSurface) GetFlags(name string) (iface.Flag, error) {
	i, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return i.Flags(), nil
}

// SetFlags implements SIOCSIFFLAGS. Failures from hardware that does not
// support a requested flag are reported as a warning, not an error
// (spec.md §4.L): this method never itself fails on unsupported flags,
// since flag support is a stack/driver-level property this repository
// has no way to probe in the reference implementation.
func (s *IfctlSurface) SetFlags(name string, f iface.Flag) error {
	i, err := s.lookup(name)
	if err != nil {
		return err
	}
	i.SetFlags(f)
	return nil
}

// GetMTU implements SIOCGIFMTU.
func (s *IfctlSurface) GetMTU(name string) (int, error) {
	i, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return i.MTU, nil
}

// SetMTU implements SIOCSIFMTU: requires root and MTU > 0, and refreshes
// the Ethernet filter if one is wired.
func (s *IfctlSurface) SetMTU(name string, callerIsRoot bool, mtu int) error {
	if !callerIsRoot {
		return fmt.Errorf("SIOCSIFMTU: %w", ErrAccessDenied)
	}
	if mtu <= 0 {
		return fmt.Errorf("SIOCSIFMTU: %w", ErrInvalidValue)
	}
	i, err := s.lookup(name)
	if err != nil {
		return err
	}
	i.MTU = mtu

	if i.Kind == iface.DriverEthernet && s.RefreshFilter != nil {
		s.RefreshFilter(i, mtu)
	}
	return nil
}

// GetHWAddr implements SIOCGIFHWADDR.
func (s *IfctlSurface) GetHWAddr(name string) ([6]byte, uint16, error) {
	i, err := s.lookup(name)
	if err != nil {
		return [6]byte{}, 0, err
	}
	return i.HWAddr, i.LinkType, nil
}

// GetMetric implements SIOCGIFMETRIC: always 0 (not tracked).
func (s *IfctlSurface) GetMetric(name string) (int, error) {
	if _, err := s.lookup(name); err != nil {
		return 0, err
	}
	return 0, nil
}

// IfConfEntry is one emitted row for SIOCGIFCONF.
type IfConfEntry struct {
	Name string
	Addr netip.Addr
}

// GetConf implements SIOCGIFCONF(amount): a dry walk when amount is the
// all-ones sentinel (returning only the byte count), otherwise the
// actual per-interface entries up to the provided cap. One entry is
// emitted per interface regardless of how many addresses are bound
// (spec.md open question: multi-address interfaces may misreport this
// is a deliberate, documented limitation, not a bug).
func (s *IfctlSurface) GetConf(amount uint32, entrySize uint32) (entries []IfConfEntry, byteCount uint32, err error) {
	all := s.ctx.Ifaces.List()

	const dryWalkAmount = ^uint32(0)
	if amount == dryWalkAmount {
		return nil, uint32(len(all)) * entrySize, nil //nolint:gosec
	}

	max := int(amount / entrySize)
	out := make([]IfConfEntry, 0, len(all))
	for idx, i := range all {
		if idx >= max {
			break
		}
		out = append(out, IfConfEntry{Name: i.Name, Addr: i.V4().Addr})
	}
	return out, uint32(len(out)) * entrySize, nil //nolint:gosec
}
