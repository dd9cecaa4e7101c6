package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// frameHeaderSize is the fixed header of every RPC message: 4-byte
// opcode + 4-byte payload length, both big-endian (grounded on
// internal/bfd/packet.go's fixed-header-then-variable-body layout).
const frameHeaderSize = 8

// maxPayloadSize bounds a single message body, rejecting corrupt length
// fields before an allocation is attempted.
const maxPayloadSize = 1 << 20

// Message is one decoded RPC request or reply.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// Encode serializes m into its wire representation.
func Encode(m Message) []byte {
	buf := make([]byte, frameHeaderSize+len(m.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(m.Opcode))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(m.Payload))) //nolint:gosec
	copy(buf[frameHeaderSize:], m.Payload)
	return buf
}

// ReadMessage reads one framed message from r.
func ReadMessage(r io.Reader) (Message, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, fmt.Errorf("read message header: %w", err)
	}

	op := Opcode(binary.BigEndian.Uint32(hdr[0:4]))
	n := binary.BigEndian.Uint32(hdr[4:8])
	if n > maxPayloadSize {
		return Message{}, fmt.Errorf("read message payload (opcode %d): %w", op, ErrInvalidValue)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("read message payload: %w", err)
	}

	return Message{Opcode: op, Payload: payload}, nil
}

// WriteMessage frames and writes m to w.
func WriteMessage(w io.Writer, m Message) error {
	if _, err := w.Write(Encode(m)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// PutUint32 and GetUint32 are small helpers for surfaces marshaling
// fixed-width fields into/from payload slices, mirroring the
// binary.BigEndian style used throughout internal/bfd/packet.go.
func PutUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func GetUint32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
