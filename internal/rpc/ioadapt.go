// ioadapt.go marshals spec.md §4.K's I/O-RPC routines onto the wire
// framing from wire.go/codec.go: every request starts with the target
// handle (except select's timeout, which follows it), every reply is the
// routine's result in declaration order.
package rpc

import (
	"context"
	"time"

	"github.com/hurdlab/pfinet/internal/stack"
)

// NewIOHandler adapts surf into the demuxer's opcode-keyed Handler.
func NewIOHandler(ctx context.Context, surf *IOSurface) Handler {
	return func(req Message) (Message, error) {
		r := newReader(req.Payload)

		switch req.Opcode {
		case OpIORead:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			amount, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			data, err := surf.Read(ctx, h, int(amount))
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutBytes(data)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIOWrite:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			data, err := r.GetBytes()
			if err != nil {
				return Message{}, err
			}
			n, err := surf.Write(ctx, h, data)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint32(uint32(n)) //nolint:gosec
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIOSeek:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			offset, err := r.GetUint64()
			if err != nil {
				return Message{}, err
			}
			whence, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			pos, err := surf.Seek(h, int64(offset), int(whence))
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint64(uint64(pos))
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIOReadable:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint32(uint32(surf.Readable(h))) //nolint:gosec
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIOGetOpenModes:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			nonBlocking, err := surf.GetOpenModes(h)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutBool(nonBlocking)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIOSetAllOpenModes:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			nonBlocking, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			if err := surf.SetAllOpenModes(h, nonBlocking); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpIOSetSomeOpenModes:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			set, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			if err := surf.SetSomeOpenModes(h, set); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpIOClearSomeOpenModes:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			clear, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			if err := surf.ClearSomeOpenModes(h, clear); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpIOSelect, OpIOSelectTimeout:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			want, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			var timeout *time.Duration
			if req.Opcode == OpIOSelectTimeout {
				ns, err := r.GetUint64()
				if err != nil {
					return Message{}, err
				}
				d := time.Duration(ns)
				timeout = &d
			}
			got, err := surf.Select(ctx, h, stack.SelectMask(want), timeout)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint32(uint32(got))
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIOStat:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			st, err := surf.Stat(h)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint64(uint64(st.FileID))
			w.PutUint32(st.Mode)
			w.PutUint32(st.BlockSize)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIOReauthenticate:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			uid, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			nh, err := surf.Reauthenticate(h, uid)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutHandle(nh)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIORestrictAuth:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			matches, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			nh, err := surf.RestrictAuth(h, matches)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutHandle(nh)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIODuplicate:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			nh, err := surf.Duplicate(h)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutHandle(nh)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIOIdentity:
			h, err := r.GetHandle()
			if err != nil {
				return Message{}, err
			}
			id, descr, err := surf.Identity(h)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutHandle(id)
			w.PutUint32(uint32(descr)) //nolint:gosec
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		default:
			return Message{}, ErrUnsupportedOperation
		}
	}
}
