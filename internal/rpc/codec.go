package rpc

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/hurdlab/pfinet/internal/captab"
)

// writer accumulates a reply payload one field at a time, mirroring
// internal/bfd/packet.go's fixed-then-variable binary.BigEndian style
// but for variable-shaped RPC argument lists instead of one fixed wire
// format.
type writer struct {
	buf []byte
}

func (w *writer) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) PutBytes(v []byte) {
	w.PutUint32(uint32(len(v))) //nolint:gosec
	w.buf = append(w.buf, v...)
}

func (w *writer) PutString(v string) { w.PutBytes([]byte(v)) }

func (w *writer) PutHandle(h captab.Handle) {
	w.PutUint64(h.ID())
	w.PutUint64(h.Gen())
}

// PutAddr encodes a netip.Addr as a 1-byte family tag (0 invalid, 4, 6)
// followed by its 4- or 16-byte representation.
func (w *writer) PutAddr(a netip.Addr) {
	switch {
	case !a.IsValid():
		w.buf = append(w.buf, 0)
	case a.Is4():
		w.buf = append(w.buf, 4)
		b := a.As4()
		w.buf = append(w.buf, b[:]...)
	default:
		w.buf = append(w.buf, 6)
		b := a.As16()
		w.buf = append(w.buf, b[:]...)
	}
}

// PutAddrPort encodes a netip.AddrPort as PutAddr followed by a 2-byte
// big-endian port.
func (w *writer) PutAddrPort(ap netip.AddrPort) {
	w.PutAddr(ap.Addr())
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], ap.Port())
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) Bytes() []byte { return w.buf }

// reader consumes a request payload one field at a time, failing closed
// (ErrInvalidValue) on truncation rather than panicking — a malformed or
// adversarial client can only ever produce a framed error reply, never
// crash the translator.
type reader struct {
	buf []byte
}

func newReader(payload []byte) *reader { return &reader{buf: payload} }

func (r *reader) take(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, fmt.Errorf("decode request: %w", ErrInvalidValue)
	}
	v := r.buf[:n]
	r.buf = r.buf[n:]
	return v, nil
}

func (r *reader) GetUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) GetUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) GetBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *reader) GetByte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) GetBytes() ([]byte, error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	if n > maxPayloadSize {
		return nil, fmt.Errorf("decode request: %w", ErrInvalidValue)
	}
	return r.take(int(n))
}

func (r *reader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) GetHandle() (captab.Handle, error) {
	id, err := r.GetUint64()
	if err != nil {
		return captab.Handle{}, err
	}
	gen, err := r.GetUint64()
	if err != nil {
		return captab.Handle{}, err
	}
	return captab.HandleFromParts(id, gen), nil
}

func (r *reader) GetAddr() (netip.Addr, error) {
	tag, err := r.take(1)
	if err != nil {
		return netip.Addr{}, err
	}
	switch tag[0] {
	case 0:
		return netip.Addr{}, nil
	case 4:
		b, err := r.take(4)
		if err != nil {
			return netip.Addr{}, err
		}
		return netip.AddrFrom4([4]byte(b)), nil
	case 6:
		b, err := r.take(16)
		if err != nil {
			return netip.Addr{}, err
		}
		return netip.AddrFrom16([16]byte(b)), nil
	default:
		return netip.Addr{}, fmt.Errorf("decode address tag %d: %w", tag[0], ErrInvalidValue)
	}
}

func (r *reader) GetAddrPort() (netip.AddrPort, error) {
	addr, err := r.GetAddr()
	if err != nil {
		return netip.AddrPort{}, err
	}
	b, err := r.take(2)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(addr, binary.BigEndian.Uint16(b)), nil
}

func (r *reader) Done() bool { return len(r.buf) == 0 }
