package rpc

import (
	"net/netip"
	"testing"

	"github.com/hurdlab/pfinet/internal/iface"
)

func TestRootHandlerIoReadWriteStubs(t *testing.T) {
	reg := iface.NewRegistry()
	surf := NewRootSurface(nil)
	handler := NewRootHandler(surf, reg)

	var readReq writer
	readReq.PutUint32(128)
	readReply, err := handler(Message{Opcode: OpRootIoRead, Payload: readReq.Bytes()})
	if err != nil {
		t.Fatalf("io_read: %v", err)
	}
	data, err := newReader(readReply.Payload).GetBytes()
	if err != nil {
		t.Fatalf("decode io_read reply: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("io_read = %d bytes, want 0", len(data))
	}

	var writeReq writer
	writeReq.PutBytes([]byte("hello"))
	if _, err := handler(Message{Opcode: OpRootIoWrite, Payload: writeReq.Bytes()}); err == nil {
		t.Fatalf("expected io_write to be denied")
	}
}

func TestRootHandlerGoAwayInvokesCallback(t *testing.T) {
	reg := iface.NewRegistry()
	var called bool
	var gotRetain bool
	surf := NewRootSurface(func(retainBootstrap bool) error {
		called = true
		gotRetain = retainBootstrap
		return nil
	})
	handler := NewRootHandler(surf, reg)

	var req writer
	req.PutBool(true)
	if _, err := handler(Message{Opcode: OpRootGoAway, Payload: req.Bytes()}); err != nil {
		t.Fatalf("goaway: %v", err)
	}
	if !called {
		t.Fatalf("onGoAway was not invoked")
	}
	if !gotRetain {
		t.Fatalf("retainBootstrap = false, want true")
	}
}

func TestRootHandlerAppendArgsSkipsLoopback(t *testing.T) {
	reg := iface.NewRegistry()
	lo := &iface.Interface{Name: iface.LoopbackName, Kind: iface.DriverLoopback}
	reg.Add(lo)
	en0 := &iface.Interface{Name: "en0", DeviceName: "eth0", Kind: iface.DriverEthernet}
	en0.SetV4(iface.V4Config{
		Addr:      netip.MustParseAddr("192.168.1.5"),
		Mask:      iface.SentinelV4,
		Gateway:   iface.SentinelV4,
		Broadcast: iface.SentinelV4,
	})
	reg.Add(en0)

	surf := NewRootSurface(nil)
	handler := NewRootHandler(surf, reg)

	reply, err := handler(Message{Opcode: OpAppendArgs})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	r := newReader(reply.Payload)
	count, err := r.GetUint32()
	if err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2 (--interface and --address)", count)
	}
	first, err := r.GetString()
	if err != nil {
		t.Fatalf("decode first arg: %v", err)
	}
	if first != "--interface=eth0" {
		t.Fatalf("first arg = %q, want --interface=eth0", first)
	}
}
