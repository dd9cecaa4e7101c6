// socketadapt.go marshals spec.md §4.J's socket-RPC routines onto the
// wire framing from wire.go/codec.go.
package rpc

import (
	"context"
	"net/netip"

	"github.com/hurdlab/pfinet/internal/stack"
)

// NewSocketHandler adapts surf into the demuxer's opcode-keyed Handler.
func NewSocketHandler(ctx context.Context, surf *SocketSurface) Handler {
	return func(req Message) (Message, error) {
		r := newReader(req.Payload)

		switch req.Opcode {
		case OpSocketCreate:
			master, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			typ, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			isRoot, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			h, err := surf.Create(master, stack.SockType(typ), isRoot)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutHandle(h)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpSocketBind:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			addrHandle, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			addr, err := r.GetAddrPort()
			if err != nil {
				return Message{}, err
			}
			if err := surf.Bind(h, addrHandle, addr); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpSocketConnect:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			addrHandle, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			addr, err := r.GetAddrPort()
			if err != nil {
				return Message{}, err
			}
			if err := surf.Connect(ctx, h, addrHandle, addr); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpSocketListen:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			backlog, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			if err := surf.Listen(h, int(backlog)); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpSocketShutdown:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			how, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			if err := surf.Shutdown(h, int(how)); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpSocketGetOpt:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			level, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			name, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			v, err := surf.GetOpt(h, int(level), int(name))
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutBytes(v)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpSocketSetOpt:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			level, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			name, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			value, err := r.GetBytes()
			if err != nil {
				return Message{}, err
			}
			if err := surf.SetOpt(h, int(level), int(name), value); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpSocketName:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			ah, err := surf.Name(h)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutHandle(ah)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpSocketPeerName:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			ah, err := surf.PeerName(h)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutHandle(ah)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpSocketAccept:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			vh, ah, err := surf.Accept(ctx, h)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutHandle(vh)
			w.PutHandle(ah)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpSocketSend:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			data, err := r.GetBytes()
			if err != nil {
				return Message{}, err
			}
			hasDst, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			var dst *netip.AddrPort
			if hasDst {
				ap, err := r.GetAddrPort()
				if err != nil {
					return Message{}, err
				}
				dst = &ap
			}
			n, err := surf.Send(ctx, h, data, dst)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint32(uint32(n)) //nolint:gosec
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpSocketRecv:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			max, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			data, ah, err := surf.Recv(ctx, h, int(max))
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutBytes(data)
			w.PutHandle(ah)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpSocketCreateAddress:
			family, err := r.GetByte()
			if err != nil {
				return Message{}, err
			}
			b, err := r.GetBytes()
			if err != nil {
				return Message{}, err
			}
			h, err := surf.CreateAddress(family, b)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutHandle(h)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpSocketWhatIsAddress:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			b, err := surf.WhatIsAddress(h)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutBytes(b)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		default:
			return Message{}, ErrUnsupportedOperation
		}
	}
}
