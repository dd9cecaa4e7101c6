// socketrpc.go implements the socket-RPC surface (spec.md §4.J),
// grounded on internal/socket's Socket/UserView/Address types and on
// internal/bfd/session.go's pattern of a typed Go method per protocol
// verb, called directly by the demuxer's wire adapter (socketadapt.go).
package rpc

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/hurdlab/pfinet/internal/captab"
	"github.com/hurdlab/pfinet/internal/socket"
	"github.com/hurdlab/pfinet/internal/stack"
	"github.com/hurdlab/pfinet/internal/translator"
)

// SocketSurface implements every routine in spec.md §4.J against a
// *translator.Context. Each method resolves its handle arguments against
// ctx.SocketBk itself so a caller never touches the capability table
// directly.
type SocketSurface struct {
	ctx         *translator.Context
	userViewCls *captab.Class
	addressCls  *captab.Class
	identityCls *captab.Class
}

// NewSocketSurface registers the user-view, address, and identity
// classes in ctx's socket bucket and returns a ready surface. Must be
// called exactly once per Context.
func NewSocketSurface(ctx *translator.Context) (*SocketSurface, error) {
	uv, err := ctx.SocketBk.CreateClass(translator.ClassUserView, socket.Cleanup(ctx.SocketBk))
	if err != nil {
		return nil, err
	}
	addr, err := ctx.SocketBk.CreateClass(translator.ClassAddress, nil)
	if err != nil {
		return nil, err
	}
	ident, err := ctx.SocketBk.CreateClass(translator.ClassIdentity, nil)
	if err != nil {
		return nil, err
	}
	return &SocketSurface{ctx: ctx, userViewCls: uv, addressCls: addr, identityCls: ident}, nil
}

// resolveView looks up h as a user-view handle, returning a borrowed
// reference the caller must Deref.
func (s *SocketSurface) resolveView(h captab.Handle) (*socket.UserView, *captab.Object, error) {
	obj, err := s.ctx.SocketBk.LookupByName(h, s.userViewCls)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve user view: %w", err)
	}
	view, ok := obj.Payload().(*socket.UserView)
	if !ok {
		s.ctx.SocketBk.Deref(obj)
		return nil, nil, fmt.Errorf("resolve user view: %w", ErrWrongClass)
	}
	return view, obj, nil
}

// installView wraps view in a fresh capability handle.
func (s *SocketSurface) installView(view *socket.UserView) captab.Handle {
	return s.ctx.SocketBk.CreatePort(s.userViewCls, view)
}

// Create implements spec.md §4.J create: validates the socket type,
// calls the stack, and wraps the result in a fresh user view.
func (s *SocketSurface) Create(masterHandle captab.Handle, typ stack.SockType, callerIsRoot bool) (captab.Handle, error) {
	if typ != stack.TypeStream && typ != stack.TypeDatagram && typ != stack.TypeRaw {
		return captab.Handle{}, fmt.Errorf("create: %w", ErrInvalidValue)
	}

	fd, err := s.ctx.Stack.Socket(s.ctx.DefaultFamily, typ)
	if err != nil {
		return captab.Handle{}, fmt.Errorf("create: %w", err)
	}

	sock := socket.New(s.ctx.Stack, fd)
	view := socket.NewUserView(sock, callerIsRoot, false)
	return s.installView(view), nil
}

// Bind implements spec.md §4.J bind: forwards to the stack and
// deallocates the address handle on success (the stack consumed it).
func (s *SocketSurface) Bind(h, addrHandle captab.Handle, addr netip.AddrPort) error {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return err
	}
	defer s.ctx.SocketBk.Deref(obj)

	if err := s.ctx.Stack.Bind(view.Socket.Descriptor(), addr); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	_ = s.ctx.SocketBk.DestroyRight(addrHandle)
	return nil
}

// Connect implements spec.md §4.J connect.
func (s *SocketSurface) Connect(ctx context.Context, h, addrHandle captab.Handle, addr netip.AddrPort) error {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return err
	}
	defer s.ctx.SocketBk.Deref(obj)

	if err := s.ctx.Stack.Connect(ctx, view.Socket.Descriptor(), addr); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	_ = s.ctx.SocketBk.DestroyRight(addrHandle)
	return nil
}

// Listen implements spec.md §4.J listen.
func (s *SocketSurface) Listen(h captab.Handle, backlog int) error {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return err
	}
	defer s.ctx.SocketBk.Deref(obj)

	if err := s.ctx.Stack.Listen(view.Socket.Descriptor(), backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown implements spec.md §4.J shutdown.
func (s *SocketSurface) Shutdown(h captab.Handle, how int) error {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return err
	}
	defer s.ctx.SocketBk.Deref(obj)

	if err := s.ctx.Stack.Shutdown(view.Socket.Descriptor(), how); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// GetOpt implements spec.md §4.J getopt.
func (s *SocketSurface) GetOpt(h captab.Handle, level, name int) ([]byte, error) {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return nil, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	v, err := s.ctx.Stack.GetSockOpt(view.Socket.Descriptor(), level, name)
	if err != nil {
		return nil, fmt.Errorf("getopt: %w", err)
	}
	return v, nil
}

// SetOpt implements spec.md §4.J setopt.
func (s *SocketSurface) SetOpt(h captab.Handle, level, name int, value []byte) error {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return err
	}
	defer s.ctx.SocketBk.Deref(obj)

	if err := s.ctx.Stack.SetSockOpt(view.Socket.Descriptor(), level, name, value); err != nil {
		return fmt.Errorf("setopt: %w", err)
	}
	return nil
}

// Name implements spec.md §4.J name: wraps the local sockaddr in a fresh
// address object.
func (s *SocketSurface) Name(h captab.Handle) (captab.Handle, error) {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return captab.Handle{}, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	addr, err := s.ctx.Stack.LocalAddr(view.Socket.Descriptor())
	if err != nil {
		return captab.Handle{}, fmt.Errorf("name: %w", err)
	}
	return s.wrapAddr(addr)
}

// PeerName implements spec.md §4.J peername.
func (s *SocketSurface) PeerName(h captab.Handle) (captab.Handle, error) {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return captab.Handle{}, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	addr, err := s.ctx.Stack.PeerAddr(view.Socket.Descriptor())
	if err != nil {
		return captab.Handle{}, fmt.Errorf("peername: %w", err)
	}
	return s.wrapAddr(addr)
}

// Accept implements spec.md §4.J accept: delegates to the stack, wraps
// the new descriptor in a fresh user view inheriting isroot, and the
// peer sockaddr in a fresh address object (spec.md invariant 7).
func (s *SocketSurface) Accept(ctx context.Context, h captab.Handle) (viewHandle, addrHandle captab.Handle, err error) {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return captab.Handle{}, captab.Handle{}, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	fd, peer, err := s.ctx.Stack.Accept(ctx, view.Socket.Descriptor())
	if err != nil {
		return captab.Handle{}, captab.Handle{}, fmt.Errorf("accept: %w", err)
	}

	newSock := socket.New(s.ctx.Stack, fd)
	newView := socket.NewUserView(newSock, view.IsRoot, false)
	vh := s.installView(newView)

	ah, err := s.wrapAddr(peer)
	if err != nil {
		return captab.Handle{}, captab.Handle{}, err
	}
	return vh, ah, nil
}

// Send implements spec.md §4.J send.
func (s *SocketSurface) Send(ctx context.Context, h captab.Handle, data []byte, dst *netip.AddrPort) (int, error) {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return 0, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	n, err := s.ctx.Stack.Send(ctx, view.Socket.Descriptor(), data, dst, view.Socket.NonBlocking())
	if err != nil {
		return 0, fmt.Errorf("send: %w", err)
	}
	return n, nil
}

// Recv implements spec.md §4.J recv: the peer address is always
// synthesized into a fresh address object; no control bytes or ports are
// produced.
func (s *SocketSurface) Recv(ctx context.Context, h captab.Handle, max int) ([]byte, captab.Handle, error) {
	view, obj, err := s.resolveView(h)
	if err != nil {
		return nil, captab.Handle{}, err
	}
	defer s.ctx.SocketBk.Deref(obj)

	res, err := s.ctx.Stack.Recv(ctx, view.Socket.Descriptor(), max, view.Socket.NonBlocking())
	if err != nil {
		return nil, captab.Handle{}, fmt.Errorf("recv: %w", err)
	}

	ah, err := s.wrapAddr(res.Peer)
	if err != nil {
		return nil, captab.Handle{}, err
	}
	return res.Data, ah, nil
}

// CreateAddress implements spec.md §4.J create-address.
func (s *SocketSurface) CreateAddress(family uint8, bytes []byte) (captab.Handle, error) {
	if family != socket.FamilyINET && family != socket.FamilyUnspec {
		return captab.Handle{}, fmt.Errorf("create-address: %w", ErrInvalidFamily)
	}
	addr, err := socket.NewAddress(family, bytes)
	if err != nil {
		return captab.Handle{}, fmt.Errorf("create-address: %w", err)
	}
	return s.ctx.SocketBk.CreatePort(s.addressCls, addr), nil
}

// WhatIsAddress implements spec.md §4.J whatis-address.
func (s *SocketSurface) WhatIsAddress(h captab.Handle) ([]byte, error) {
	obj, err := s.ctx.SocketBk.LookupByName(h, s.addressCls)
	if err != nil {
		return nil, fmt.Errorf("whatis-address: %w", err)
	}
	defer s.ctx.SocketBk.Deref(obj)

	addr, ok := obj.Payload().(*socket.Address)
	if !ok {
		return nil, fmt.Errorf("whatis-address: %w", ErrWrongClass)
	}
	return addr.Payload(), nil
}

// wrapAddr converts a netip.AddrPort into a fresh address object handle,
// emitting an INET or INET6 sockaddr depending on the address's family.
func (s *SocketSurface) wrapAddr(ap netip.AddrPort) (captab.Handle, error) {
	family := socket.FamilyINET
	var payload []byte
	if ap.Addr().Is4() {
		b := ap.Addr().As4()
		payload = make([]byte, 2+len(b))
		copy(payload[2:], b[:])
	} else {
		family = socket.FamilyINET6
		b := ap.Addr().As16()
		payload = make([]byte, 2+len(b))
		copy(payload[2:], b[:])
	}
	payload[0] = byte(ap.Port() >> 8) //nolint:gosec
	payload[1] = byte(ap.Port())      //nolint:gosec

	addr, err := socket.NewAddress(family, payload)
	if err != nil {
		return captab.Handle{}, fmt.Errorf("wrap address: %w", err)
	}
	return s.ctx.SocketBk.CreatePort(s.addressCls, addr), nil
}
