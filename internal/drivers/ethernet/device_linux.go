//go:build linux

package ethernet

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// RawDevice implements Device over an AF_PACKET raw socket bound to one
// interface, the Linux realization of spec.md §4.E's device port.
// Grounded on internal/netio/rawsock_linux.go's socket-option dance
// (SO_BINDTODEVICE, raised message-queue limit), retargeted from UDP
// datagram sockets to raw link-layer framing.
type RawDevice struct {
	mu     sync.Mutex
	fd     int
	ifName string
	closed bool
}

// OpenRawDevice opens an AF_PACKET socket bound to ifName, the Linux
// realization of spec.md §4.E's "look up the device name first as a
// filesystem path, falling back to the kernel device master" — on Linux
// there is no separate path lookup, so this call is the single open
// procedure.
func OpenRawDevice(ifIndex int, ifName string) (*RawDevice, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(unix.ETH_P_ALL))
	if err != nil {
		return nil, fmt.Errorf("open raw socket: %w", err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifIndex,
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind raw socket to %s: %w", ifName, err)
	}

	// Raise the socket's receive-buffer limit, the Go-side analogue of
	// spec.md §4.E's "raise the port's message-queue limit".
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, 1<<20)

	return &RawDevice{fd: fd, ifName: ifName}, nil
}

func htons(v int) int {
	return int(uint16(v)<<8 | uint16(v)>>8) //nolint:gosec
}

// Write sends one Ethernet frame. The driver above guarantees it is
// never called with a chained buffer.
func (d *RawDevice) Write(frame []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("write to %s: %w", d.ifName, ErrServerDied)
	}

	if err := unix.Send(d.fd, frame, 0); err != nil {
		if err == unix.EHOSTUNREACH || err == unix.ENETUNREACH { //nolint:errorlint
			return fmt.Errorf("write to %s: %w", d.ifName, ErrInvalidDest)
		}
		return fmt.Errorf("write to %s: %w", d.ifName, err)
	}
	return nil
}

// Close releases the raw socket.
func (d *RawDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if err := unix.Close(d.fd); err != nil {
		return fmt.Errorf("close raw socket: %w", err)
	}
	return nil
}

// HardwareAddr reads the 6-byte hardware address via SIOCGIFHWADDR,
// the Linux equivalent of spec.md §4.E's "two network-order integers
// read from the device then byte-swapped into canonical order".
func HardwareAddr(ifName string) ([6]byte, error) {
	var addr [6]byte

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return addr, fmt.Errorf("hwaddr probe socket: %w", err)
	}
	defer unix.Close(fd) //nolint:errcheck

	ifr, err := unix.NewIfreq(ifName)
	if err != nil {
		return addr, fmt.Errorf("hwaddr ifreq %s: %w", ifName, err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFHWADDR, ifr); err != nil {
		return addr, fmt.Errorf("SIOCGIFHWADDR %s: %w", ifName, err)
	}

	hw := ifr.HardwareAddr()
	copy(addr[:], hw)
	return addr, nil
}

var _ Device = (*RawDevice)(nil)
