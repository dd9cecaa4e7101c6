// rootadapt.go marshals spec.md §6's root-node control RPCs onto the
// wire framing from wire.go/codec.go.
package rpc

import "github.com/hurdlab/pfinet/internal/iface"

// NewRootHandler adapts surf into the demuxer's opcode-keyed Handler.
// reg supplies OpAppendArgs its view of the live interface configuration
// (spec.md §6, "Persistent state").
func NewRootHandler(surf *RootSurface, reg *iface.Registry) Handler {
	return func(req Message) (Message, error) {
		r := newReader(req.Payload)

		switch req.Opcode {
		case OpRootIoRead:
			amount, err := r.GetUint32()
			if err != nil {
				return Message{}, err
			}
			data, err := surf.IoRead(int(amount))
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutBytes(data)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpRootIoWrite:
			data, err := r.GetBytes()
			if err != nil {
				return Message{}, err
			}
			n, err := surf.IoWrite(data)
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint32(uint32(n)) //nolint:gosec
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpRootStat:
			st, err := surf.Stat()
			if err != nil {
				return Message{}, err
			}
			var w writer
			w.PutUint64(uint64(st.FileID))
			w.PutUint32(st.Mode)
			w.PutUint32(st.BlockSize)
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		case OpRootGoAway:
			retainBootstrap, err := r.GetBool()
			if err != nil {
				return Message{}, err
			}
			if err := surf.GoAway(retainBootstrap); err != nil {
				return Message{}, err
			}
			return Message{Opcode: req.Opcode}, nil

		case OpAppendArgs:
			args := AppendArgs(reg)
			var w writer
			w.PutUint32(uint32(len(args))) //nolint:gosec
			for _, a := range args {
				w.PutString(a)
			}
			return Message{Opcode: req.Opcode, Payload: w.Bytes()}, nil

		default:
			return Message{}, ErrUnsupportedOperation
		}
	}
}
