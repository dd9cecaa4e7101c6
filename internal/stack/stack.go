// Package stack defines the boundary between the translator and the
// embedded TCP/IP stack it drives. Per spec.md §1 the stack itself is an
// opaque collaborator out of scope for this repository; this package
// only specifies the contract every RPC surface and driver programs
// against. internal/stack/refstack provides a minimal reference
// implementation (loopback-capable datagram delivery, a software
// interface table) sufficient to exercise the rest of the tree and the
// S1 loopback-round-trip scenario; it is not a production network stack.
package stack

import (
	"context"
	"errors"
	"net/netip"
	"time"
)

// Descriptor is the stack-level socket descriptor wrapped by
// internal/socket.Socket.
type Descriptor int

// SockType enumerates the socket types the socket-RPC surface accepts
// (spec.md §4.J: "types must be ∈ {stream, datagram, raw}").
type SockType int

const (
	TypeStream SockType = iota
	TypeDatagram
	TypeRaw
)

// Family restricts sockets to the families spec.md §1 allows.
type Family int

const (
	FamilyINET Family = iota
	FamilyINET6
)

// SelectMask is a bitmask of readiness conditions for Select.
type SelectMask uint8

const (
	SelectRead SelectMask = 1 << iota
	SelectWrite
	SelectExcept
)

// Sentinel errors surfaced verbatim by RPC handlers except where noted
// (spec.md §7).
var (
	ErrWouldBlock  = errors.New("operation would block")
	ErrInterrupted = errors.New("operation interrupted")
	ErrTimedOut    = errors.New("operation timed out")
	ErrBadFD       = errors.New("bad descriptor")
	ErrAddrInUse   = errors.New("address in use")
	ErrNotConn     = errors.New("socket not connected")
)

// RecvResult carries the data and metadata returned by a Recv call.
type RecvResult struct {
	Data  []byte
	Peer  netip.AddrPort
	Flags int
}

// Stack is the contract the translator drives. It covers both
// per-socket operations (J/K surfaces) and interface management (D/I),
// since spec.md treats both as calls into one embedded stack.
type Stack interface {
	// Socket-level operations.
	Socket(family Family, typ SockType) (Descriptor, error)
	Bind(fd Descriptor, addr netip.AddrPort) error
	Listen(fd Descriptor, backlog int) error
	Connect(ctx context.Context, fd Descriptor, addr netip.AddrPort) error
	Accept(ctx context.Context, fd Descriptor) (Descriptor, netip.AddrPort, error)
	Send(ctx context.Context, fd Descriptor, data []byte, dst *netip.AddrPort, nonBlocking bool) (int, error)
	Recv(ctx context.Context, fd Descriptor, max int, nonBlocking bool) (RecvResult, error)
	Shutdown(fd Descriptor, how int) error
	GetSockOpt(fd Descriptor, level, name int) ([]byte, error)
	SetSockOpt(fd Descriptor, level, name int, value []byte) error
	Close(fd Descriptor) error
	LocalAddr(fd Descriptor) (netip.AddrPort, error)
	PeerAddr(fd Descriptor) (netip.AddrPort, error)
	Readable(fd Descriptor) int
	Select(ctx context.Context, fd Descriptor, mask SelectMask, timeout *time.Duration) (SelectMask, error)

	// Interface-level operations, driven by internal/iface.
	AddInterface(name string, v4 IfaceV4Config) error
	RemoveInterface(name string) error
	SetInterfaceUp(name string, up bool) error
	EnableIPv6Autoconf(name string) error
	AddIPv6Address(name string, addr netip.Addr) error
	SetDefaultRoute(gateway netip.Addr, v6 bool) error
}

// IfaceV4Config is the IPv4 configuration the stack attaches to a newly
// added interface.
type IfaceV4Config struct {
	Addr      netip.Addr
	Mask      netip.Addr
	Gateway   netip.Addr
	Broadcast netip.Addr
}
