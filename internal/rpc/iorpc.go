// iorpc.go implements the I/O-RPC surface (spec.md §4.K): read/write on a
// socket's descriptor, select, stat, and the identity/duplication verbs.
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/hurdlab/pfinet/internal/captab"
	"github.com/hurdlab/pfinet/internal/stack"
	"github.com/hurdlab/pfinet/internal/translator"
)

// StatInfo is the reply shape for spec.md §4.K stat: a filesystem-type
// "socket" with the stack descriptor standing in for a file id.
type StatInfo struct {
	FileID    int64
	Mode      uint32
	BlockSize uint32
}

// modeSocket mirrors POSIX S_IFSOCK.
const modeSocket = 0140000

// statMode is S_IFSOCK | 0777 (spec.md §4.K stat).
const statMode = modeSocket | 0o777

// statBlockSize is the fixed block size spec.md §4.K requires.
const statBlockSize = 512

// IOSurface implements every routine in spec.md §4.K against a
// *translator.Context, sharing the socket bucket and classes registered
// by [SocketSurface].
type IOSurface struct {
	ctx  *translator.Context
	surf *SocketSurface
}

// NewIOSurface builds an I/O surface sharing surf's registered classes.
func NewIOSurface(ctx *translator.Context, surf *SocketSurface) *IOSurface {
	return &IOSurface{ctx: ctx, surf: surf}
}

// Read implements spec.md §4.K read: non-blocking propagation follows
// the socket's current bit, re-read fresh per call.
func (s *IOSurface) Read(ctx context.Context, h captab.Handle, amount int) ([]byte, error) {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return nil, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	res, err := s.ctx.Stack.Recv(ctx, view.Socket.Descriptor(), amount, view.Socket.NonBlocking())
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return res.Data, nil
}

// Write implements spec.md §4.K write.
func (s *IOSurface) Write(ctx context.Context, h captab.Handle, data []byte) (int, error) {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return 0, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	n, err := s.ctx.Stack.Send(ctx, view.Socket.Descriptor(), data, nil, view.Socket.NonBlocking())
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	return n, nil
}

// Seek implements spec.md §4.K seek: always fails, socket handles are not
// seekable.
func (s *IOSurface) Seek(captab.Handle, int64, int) (int64, error) {
	return 0, fmt.Errorf("seek: %w", ErrInvalidSeek)
}

// Readable implements spec.md §4.K readable: 0 on error, never
// propagated as a failure.
func (s *IOSurface) Readable(h captab.Handle) int {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return 0
	}
	defer s.ctx.SocketBk.Deref(obj)

	return s.ctx.Stack.Readable(view.Socket.Descriptor())
}

// GetOpenModes implements spec.md §4.K get-openmodes: only the
// non-blocking bit is tracked; other bits always read as clear.
func (s *IOSurface) GetOpenModes(h captab.Handle) (nonBlocking bool, err error) {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return false, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	return view.Socket.NonBlocking(), nil
}

// SetAllOpenModes implements spec.md §4.K set-all-openmodes: records the
// non-blocking bit on the socket, and later reads and writes pass it to
// the stack per call; other bits are silently accepted.
func (s *IOSurface) SetAllOpenModes(h captab.Handle, nonBlocking bool) error {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return err
	}
	defer s.ctx.SocketBk.Deref(obj)

	view.Socket.SetNonBlocking(nonBlocking)
	return nil
}

// SetSomeOpenModes implements spec.md §4.K set-some-openmodes: ORs in
// the non-blocking bit if requested.
func (s *IOSurface) SetSomeOpenModes(h captab.Handle, setNonBlocking bool) error {
	if !setNonBlocking {
		return nil
	}
	return s.SetAllOpenModes(h, true)
}

// ClearSomeOpenModes implements spec.md §4.K clear-some-openmodes.
func (s *IOSurface) ClearSomeOpenModes(h captab.Handle, clearNonBlocking bool) error {
	if !clearNonBlocking {
		return nil
	}
	return s.SetAllOpenModes(h, false)
}

// Select implements spec.md §4.K select[_timeout]: translates the
// requested mask, delegates to the stack, and translates back. Per
// spec.md §9 "check-after-arm", the caller is expected to have already
// armed its cancel-on-port-death subscription before calling this (the
// ctx passed in should already be tied to that subscription).
func (s *IOSurface) Select(ctx context.Context, h captab.Handle, want stack.SelectMask, timeout *time.Duration) (stack.SelectMask, error) {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return 0, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	got, err := s.ctx.Stack.Select(ctx, view.Socket.Descriptor(), want, timeout)
	if err != nil {
		return 0, fmt.Errorf("select: %w", err)
	}
	return got, nil
}

// Stat implements spec.md §4.K stat.
func (s *IOSurface) Stat(h captab.Handle) (StatInfo, error) {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return StatInfo{}, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	return StatInfo{
		FileID:    int64(view.Socket.Descriptor()),
		Mode:      statMode,
		BlockSize: statBlockSize,
	}, nil
}

// Reauthenticate implements spec.md §4.K reauthenticate: recomputes
// isroot from the caller's effective uid and installs a
// shadow user view (the auth-server round trip itself is the caller's
// responsibility; this method takes the resolved uid as input).
func (s *IOSurface) Reauthenticate(h captab.Handle, effectiveUID uint32) (captab.Handle, error) {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return captab.Handle{}, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	isroot := s.ctx.IsRoot(effectiveUID, false)
	shadow := view.RestrictAuth(isroot)
	return s.surf.installView(shadow), nil
}

// RestrictAuth implements spec.md §4.K restrict-auth: installs a new
// view whose isroot is matchesOwner, without contacting an
// authentication server.
func (s *IOSurface) RestrictAuth(h captab.Handle, matchesOwner bool) (captab.Handle, error) {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return captab.Handle{}, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	nv := view.RestrictAuth(matchesOwner)
	return s.surf.installView(nv), nil
}

// Duplicate implements spec.md §4.K duplicate (spec.md invariant 7:
// duplicate preserves the socket identity).
func (s *IOSurface) Duplicate(h captab.Handle) (captab.Handle, error) {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return captab.Handle{}, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	nv := view.Duplicate()
	return s.surf.installView(nv), nil
}

// Identity implements spec.md §4.K identity: lazily allocates the
// socket's identity port if needed.
func (s *IOSurface) Identity(h captab.Handle) (identity captab.Handle, descriptor int, err error) {
	view, obj, err := s.surf.resolveView(h)
	if err != nil {
		return captab.Handle{}, 0, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	id := view.Socket.Identity(s.ctx.SocketBk, s.surf.identityCls)
	return id, int(view.Socket.Descriptor()), nil
}
