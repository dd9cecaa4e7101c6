package rpc

import (
	"net/netip"
	"testing"
)

func TestIfctlHandlerGetAddrRoundTrip(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)
	handler := NewIfctlHandler(surf)

	var req writer
	req.PutString("en0")
	reply, err := handler(Message{Opcode: OpIfGetAddr, Payload: req.Bytes()})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	addr, err := newReader(reply.Payload).GetAddr()
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if addr.String() != "192.168.1.5" {
		t.Fatalf("addr = %s, want 192.168.1.5", addr)
	}
}

func TestIfctlHandlerSetAddrRequiresRoot(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)
	handler := NewIfctlHandler(surf)

	var req writer
	req.PutString("en0")
	req.PutBool(false)
	req.PutAddr(netip.MustParseAddr("192.168.1.9"))
	if _, err := handler(Message{Opcode: OpIfSetAddr, Payload: req.Bytes()}); err == nil {
		t.Fatalf("expected access denied for a non-root caller")
	}
}

func TestIfctlHandlerGetConfDryWalk(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)
	handler := NewIfctlHandler(surf)

	var req writer
	req.PutUint32(^uint32(0))
	req.PutUint32(32)
	reply, err := handler(Message{Opcode: OpIfGetConf, Payload: req.Bytes()})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	r := newReader(reply.Payload)
	byteCount, err := r.GetUint32()
	if err != nil {
		t.Fatalf("decode byte count: %v", err)
	}
	if byteCount != 32 {
		t.Fatalf("byteCount = %d, want 32 (one en0 entry)", byteCount)
	}
	entryCount, err := r.GetUint32()
	if err != nil {
		t.Fatalf("decode entry count: %v", err)
	}
	if entryCount != 0 {
		t.Fatalf("entryCount = %d, want 0 for a dry walk", entryCount)
	}
}

func TestIfctlHandlerNoSuchDevice(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)
	handler := NewIfctlHandler(surf)

	var req writer
	req.PutString("eth9")
	if _, err := handler(Message{Opcode: OpIfGetAddr, Payload: req.Bytes()}); err == nil {
		t.Fatalf("expected an error for an unconfigured device")
	}
}
