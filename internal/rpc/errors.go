// Package rpc implements the RPC demuxer and the socket, I/O, and
// interface-ioctl surfaces (spec.md §4.J–§4.L, §9 "String-typed
// dispatch"). Grounded on internal/bfd/manager.go's session-lookup
// pattern for capability resolution and internal/bfd/packet.go's
// binary.BigEndian wire conventions for framing.
package rpc

import "errors"

// Error taxonomy (spec.md §7): kinds, not codes. The surfaces return
// these for failures they detect themselves; errors from the stack,
// captab and iface are passed through wrapped, not mapped onto a kind.
// Conn.Serve frames whatever error a handler returns into the reply.
// Fatal errors are never produced here (they belong to startup, handled
// by cmd/pfinet).
var (
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrAccessDenied         = errors.New("access denied")
	ErrNoSuchDevice         = errors.New("no such device")
	ErrAddrInUse            = errors.New("address in use")
	ErrInvalidFamily        = errors.New("invalid family")
	ErrInvalidValue         = errors.New("invalid value")
	ErrBusy                 = errors.New("busy")
	ErrWouldBlock           = errors.New("would block")
	ErrInterrupted          = errors.New("interrupted")
	ErrTimedOut             = errors.New("timed out")
	ErrOutOfMemory          = errors.New("out of memory")
	ErrInvalidSeek          = errors.New("invalid seek")
	ErrBadHandle            = errors.New("bad handle")
	ErrWrongClass           = errors.New("wrong class")
)
