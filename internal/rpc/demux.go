package rpc

import "fmt"

// Handler processes one decoded message and produces a reply payload.
type Handler func(req Message) (reply Message, err error)

// Surface is one (opcode range, handler) entry in the demuxer's table
// (spec.md §9 "String-typed dispatch": "an ordered array of (range,
// handler-fn) entries and linear search (≤ 4 surfaces)").
type Surface struct {
	Name   string
	Lo, Hi Opcode
	Handle Handler
}

func (s Surface) contains(op Opcode) bool { return op >= s.Lo && op <= s.Hi }

// Demuxer holds the ordered surface table. Order matters: spec.md S6
// requires that when an opcode falls within two surfaces' ranges, the
// first-listed surface wins. The production table lists I/O before
// Socket before Interface-ioctl before Root, matching spec.md §4's
// documented "I/O is tried first" precedence.
type Demuxer struct {
	surfaces []Surface
}

// NewDemuxer builds a demuxer from an ordered list of surfaces.
func NewDemuxer(surfaces ...Surface) *Demuxer {
	return &Demuxer{surfaces: surfaces}
}

// Dispatch routes req to the first surface whose range contains its
// opcode, in table order.
func (d *Demuxer) Dispatch(req Message) (Message, error) {
	for _, s := range d.surfaces {
		if s.contains(req.Opcode) {
			return s.Handle(req)
		}
	}
	return Message{}, fmt.Errorf("dispatch opcode %d: %w", req.Opcode, ErrUnsupportedOperation)
}

// NewProductionDemuxer wires the real I/O, Socket, Interface-ioctl, and
// Root surfaces in the precedence order spec.md documents: I/O first.
func NewProductionDemuxer(io, socket, ifctl, root Handler) *Demuxer {
	return NewDemuxer(
		Surface{Name: "io", Lo: ioRangeLo, Hi: ioRangeHi, Handle: io},
		Surface{Name: "socket", Lo: socketRangeLo, Hi: socketRangeHi, Handle: socket},
		Surface{Name: "ifctl", Lo: ifRangeLo, Hi: ifRangeHi, Handle: ifctl},
		Surface{Name: "root", Lo: OpRootIoRead, Hi: OpAppendArgs, Handle: root},
	)
}
