// ifctladapt.go marshals spec.md §4.L's interface-ioctl routines onto
// the wire framing from wire.go/codec.go. Every request except
// SIOCGIFCONF (which carries amount and entry size) starts with the
// length-prefixed interface name, looked up truncated to 15 bytes.
// SIOCSIFADDR, SIOCSIFNETMASK, SIOCSIFBRDADDR and SIOCSIFMTU also carry
// the caller's root flag ahead of the value being set; SIOCSIFFLAGS
// carries no root flag.
package rpc

import "github.com/hurdlab/pfinet/internal/iface"

func NewIfctlHandler(surf *IfctlSurface) Handler {
	return func(req Message) (Message, error) {
		r := newReader(req.Payload)

		switch req.Opcode {
		case OpIfGetAddr:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			addr, err := surf.GetAddr(name)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutAddr(addr)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIfSetAddr:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			isRoot, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			addr, err := r.GetAddr()
			if err != nil {
				return Message{}, err
			}
			if err := surf.SetAddr(name, isRoot, addr); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpIfGetNetmask:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			mask, err := surf.GetNetmask(name)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutAddr(mask)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIfSetNetmask:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			isRoot, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			mask, err := r.GetAddr()
			if err != nil {
				return Message{}, err
			}
			if err := surf.SetNetmask(name, isRoot, mask); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpIfGetBrdAddr:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			bcast, err := surf.GetBrdAddr(name)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutAddr(bcast)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIfSetBrdAddr:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			isRoot, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			bcast, err := r.GetAddr()
			if err != nil {
				return Message{}, err
			}
			if err := surf.SetBrdAddr(name, isRoot, bcast); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpIfGetDstAddr:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			addr, err := surf.GetDstAddr(name)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutAddr(addr)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIfGetFlags:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			f, err := surf.GetFlags(name)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint32(uint32(f))
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIfSetFlags:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			f, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			if err := surf.SetFlags(name, iface.Flag(f)); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpIfGetMTU:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			mtu, err := surf.GetMTU(name)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint32(uint32(mtu)) //nolint:gosec
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIfSetMTU:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			isRoot, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			mtu, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			if err := surf.SetMTU(name, isRoot, int(mtu)); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpIfGetHWAddr:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			hw, linkType, err := surf.GetHWAddr(name)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutBytes(hw[:])
			w.PutUint32(uint32(linkType))
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIfGetMetric:
			name, err := r.GetString()
			if err != nil {
				return Message{}, err
			}
			metric, err := surf.GetMetric(name)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint32(uint32(metric)) //nolint:gosec
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpIfGetConf:
			amount, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			entrySize, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			entries, byteCount, err := surf.GetConf(amount, entrySize)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint32(byteCount)
			w.PutUint32(uint32(len(entries))) //nolint:gosec
			for _, e := range entries {
				w.PutString(e.Name)
				w.PutAddr(e.Addr)
			}
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		default:
			return Message{}, ErrUnsupportedOperation
		}
	}
}
