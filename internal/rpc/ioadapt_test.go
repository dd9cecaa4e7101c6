package rpc

import (
	"context"
	"testing"

	"github.com/hurdlab/pfinet/internal/captab"
	"github.com/hurdlab/pfinet/internal/stack"
)

func TestIOHandlerGetOpenModesRoundTrip(t *testing.T) {
	sockSurf, ctx := newTestSurface(t)
	ioSurf := NewIOSurface(ctx, sockSurf)
	h := mustCreateSocket(t, sockSurf, stack.TypeDatagram)

	handler := NewIOHandler(context.Background(), ioSurf)

	var w writer
	w.PutHandle(h)
	reply, err := handler(Message{Opcode: OpIOGetOpenModes, Payload: w.Bytes()})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	r := newReader(reply.Payload)
	nonBlocking, err := r.GetBool()
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if nonBlocking {
		t.Fatalf("nonBlocking = true, want false for a freshly created socket")
	}
	if !r.Done() {
		t.Fatalf("trailing bytes in reply")
	}
}

func TestIOHandlerSetAllOpenModesThenGet(t *testing.T) {
	sockSurf, ctx := newTestSurface(t)
	ioSurf := NewIOSurface(ctx, sockSurf)
	h := mustCreateSocket(t, sockSurf, stack.TypeDatagram)
	handler := NewIOHandler(context.Background(), ioSurf)

	var setReq writer
	setReq.PutHandle(h)
	setReq.PutBool(true)
	if _, err := handler(Message{Opcode: OpIOSetAllOpenModes, Payload: setReq.Bytes()}); err != nil {
		t.Fatalf("set open modes: %v", err)
	}

	var getReq writer
	getReq.PutHandle(h)
	reply, err := handler(Message{Opcode: OpIOGetOpenModes, Payload: getReq.Bytes()})
	if err != nil {
		t.Fatalf("get open modes: %v", err)
	}
	nonBlocking, err := newReader(reply.Payload).GetBool()
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if !nonBlocking {
		t.Fatalf("nonBlocking = false after SetAllOpenModes(true)")
	}
}

func TestIOHandlerUnknownOpcode(t *testing.T) {
	sockSurf, ctx := newTestSurface(t)
	ioSurf := NewIOSurface(ctx, sockSurf)
	handler := NewIOHandler(context.Background(), ioSurf)

	if _, err := handler(Message{Opcode: Opcode(9999)}); err == nil {
		t.Fatalf("expected an error for an unknown opcode")
	}
}

func TestIOHandlerTruncatedPayloadFailsClosed(t *testing.T) {
	sockSurf, ctx := newTestSurface(t)
	ioSurf := NewIOSurface(ctx, sockSurf)
	handler := NewIOHandler(context.Background(), ioSurf)

	if _, err := handler(Message{Opcode: OpIORead, Payload: []byte{1, 2, 3}}); err == nil {
		t.Fatalf("expected a decode error for a truncated payload")
	}
}

func mustCreateSocket(t *testing.T, surf *SocketSurface, typ stack.SockType) captab.Handle {
	t.Helper()
	h, err := surf.Create(captab.Handle{}, typ, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return h
}
