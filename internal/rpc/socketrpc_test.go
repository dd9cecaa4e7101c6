package rpc

import (
	"context"
	"net/netip"
	"testing"

	"github.com/hurdlab/pfinet/internal/captab"
	"github.com/hurdlab/pfinet/internal/iface"
	"github.com/hurdlab/pfinet/internal/socket"
	"github.com/hurdlab/pfinet/internal/stack"
	"github.com/hurdlab/pfinet/internal/stack/refstack"
	"github.com/hurdlab/pfinet/internal/translator"
)

func newTestSurface(t *testing.T) (*SocketSurface, *translator.Context) {
	t.Helper()
	reg := iface.NewRegistry()
	stk := refstack.New()
	ctx, err := translator.New(reg, stk, 0, 0, stack.FamilyINET)
	if err != nil {
		t.Fatalf("translator.New: %v", err)
	}
	surf, err := NewSocketSurface(ctx)
	if err != nil {
		t.Fatalf("NewSocketSurface: %v", err)
	}
	return surf, ctx
}

// TestLoopbackRoundTrip implements spec.md S1: a datagram socket binds to
// 127.0.0.1:5555, sends "ping" to itself, and receives it back.
func TestLoopbackRoundTrip(t *testing.T) {
	surf, ctx := newTestSurface(t)
	background := context.Background()

	h, err := surf.Create(captab.Handle{}, stack.TypeDatagram, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	loopback := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 5555)
	addrHandle, err := surf.CreateAddress(2, []byte{127, 0, 0, 1, 0x15, 0xb3})
	if err != nil {
		t.Fatalf("create-address: %v", err)
	}
	if err := surf.Bind(h, addrHandle, loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if _, err := surf.Send(background, h, []byte("ping"), &loopback); err != nil {
		t.Fatalf("send: %v", err)
	}

	data, peerHandle, err := surf.Recv(background, h, 1500)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(data) != "ping" {
		t.Fatalf("data = %q, want %q", data, "ping")
	}

	peerBytes, err := surf.WhatIsAddress(peerHandle)
	if err != nil {
		t.Fatalf("whatis-address: %v", err)
	}
	if len(peerBytes) != 6 {
		t.Fatalf("peer address payload len = %d, want 6", len(peerBytes))
	}
	gotPort := int(peerBytes[0])<<8 | int(peerBytes[1])
	if gotPort != 5555 {
		t.Fatalf("peer port = %d, want 5555", gotPort)
	}

	_ = ctx
}

// TestIPv6RoundTrip implements spec.md S1's INET6 half: a datagram
// socket created on an INET6 translator node binds to an IPv6 address,
// sends to itself, and receives the datagram back with a peer address
// synthesized as an INET6 sockaddr. This exercises wrapAddr's
// family-branching path (Recv/Name/PeerName/Accept all share it) and
// would have caught a hardcoded As4() call panicking on a v6 address.
func TestIPv6RoundTrip(t *testing.T) {
	reg := iface.NewRegistry()
	stk := refstack.New()
	ctx, err := translator.New(reg, stk, 0, 0, stack.FamilyINET6)
	if err != nil {
		t.Fatalf("translator.New: %v", err)
	}
	surf, err := NewSocketSurface(ctx)
	if err != nil {
		t.Fatalf("NewSocketSurface: %v", err)
	}
	background := context.Background()

	h, err := surf.Create(captab.Handle{}, stack.TypeDatagram, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	addrHandle, err := surf.CreateAddress(0, nil)
	if err != nil {
		t.Fatalf("create-address: %v", err)
	}

	v6 := netip.AddrPortFrom(netip.MustParseAddr("2001:db8::1"), 5555)
	if err := surf.Bind(h, addrHandle, v6); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if _, err := surf.Send(background, h, []byte("ping"), &v6); err != nil {
		t.Fatalf("send: %v", err)
	}

	data, peerHandle, err := surf.Recv(background, h, 1500)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(data) != "ping" {
		t.Fatalf("data = %q, want %q", data, "ping")
	}

	peerObj, err := ctx.SocketBk.LookupByName(peerHandle, surf.addressCls)
	if err != nil {
		t.Fatalf("lookup peer address: %v", err)
	}
	defer ctx.SocketBk.Deref(peerObj)

	peerAddr, ok := peerObj.Payload().(*socket.Address)
	if !ok {
		t.Fatal("peer address object has the wrong payload type")
	}
	if peerAddr.Family != socket.FamilyINET6 {
		t.Fatalf("peer family = %d, want FamilyINET6 (%d)", peerAddr.Family, socket.FamilyINET6)
	}

	peerBytes := peerAddr.Payload()
	if len(peerBytes) != 18 {
		t.Fatalf("peer address payload len = %d, want 18 (2-byte port + 16-byte addr)", len(peerBytes))
	}
	gotPort := int(peerBytes[0])<<8 | int(peerBytes[1])
	if gotPort != 5555 {
		t.Fatalf("peer port = %d, want 5555", gotPort)
	}
	var gotAddrBytes [16]byte
	copy(gotAddrBytes[:], peerBytes[2:])
	if netip.AddrFrom16(gotAddrBytes) != netip.MustParseAddr("2001:db8::1") {
		t.Fatalf("peer addr = %s, want 2001:db8::1", netip.AddrFrom16(gotAddrBytes))
	}
}

// TestCreateReturnsResolvableHandle covers spec.md invariant 1: a
// successful create's handle resolves to a user view whose descriptor
// matches the one the stack created.
func TestCreateReturnsResolvableHandle(t *testing.T) {
	surf, ctx := newTestSurface(t)

	h, err := surf.Create(captab.Handle{}, stack.TypeStream, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	view, obj, err := surf.resolveView(h)
	if err != nil {
		t.Fatalf("resolveView: %v", err)
	}
	defer ctx.SocketBk.Deref(obj)

	if view.Socket.Descriptor() == 0 {
		t.Fatal("expected a non-zero stack descriptor")
	}
}

// TestReferenceSymmetryCleanupOnce covers spec.md invariant 2: cleanup
// for an object runs exactly once, when the last reference drops.
func TestReferenceSymmetryCleanupOnce(t *testing.T) {
	surf, ctx := newTestSurface(t)

	h, err := surf.Create(captab.Handle{}, stack.TypeDatagram, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	view, obj, err := surf.resolveView(h)
	if err != nil {
		t.Fatalf("resolveView: %v", err)
	}
	fd := view.Socket.Descriptor()
	ctx.SocketBk.Deref(obj) // balance the borrowed reference from resolveView

	if err := ctx.SocketBk.DestroyRight(h); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	if _, err := surf.resolveView(h); err == nil {
		t.Fatal("expected stale handle lookup to fail after destruction")
	}

	ref, ok := ctx.Stack.(*refstack.Ref)
	if !ok {
		t.Fatal("expected the test stack to be *refstack.Ref")
	}
	if !ref.IsClosed(fd) {
		t.Fatal("expected the stack descriptor to be closed after last deref")
	}
}

// TestDuplicatePreservesIsRoot covers spec.md invariant 7 as far as the
// reference stack allows: accept on it fails, and duplicate preserves
// the listener's isroot.
func TestDuplicatePreservesIsRoot(t *testing.T) {
	surf, ctx := newTestSurface(t)
	background := context.Background()

	listenerHandle, err := surf.Create(captab.Handle{}, stack.TypeStream, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := surf.Listen(listenerHandle, 1); err != nil {
		t.Fatalf("listen: %v", err)
	}

	// refstack's Accept is unimplemented (no pending connections in this
	// reference stack), so this exercises the error path; isroot
	// propagation is asserted below via Duplicate instead.
	if _, _, err := surf.Accept(background, listenerHandle); err == nil {
		t.Fatal("expected refstack accept to report not-connected")
	}

	view, obj, err := surf.resolveView(listenerHandle)
	if err != nil {
		t.Fatalf("resolveView: %v", err)
	}
	defer ctx.SocketBk.Deref(obj)

	dup := view.Duplicate()
	if dup.IsRoot != view.IsRoot {
		t.Fatal("duplicate did not preserve isroot")
	}
	if dup.Socket != view.Socket {
		t.Fatal("duplicate did not share the same underlying socket")
	}
	dup.Socket.DropUser(ctx.SocketBk)
}
