package socket

import (
	"errors"
	"fmt"
)

// Address family tags, matching the translator's INET/INET6 restriction
// (spec.md §1 non-goals: no arbitrary UNIX-domain semantics).
const (
	FamilyUnspec uint8 = 0
	FamilyINET   uint8 = 2
	FamilyINET6  uint8 = 10

	// maxAddressBytes bounds an embedded sockaddr payload (spec.md §3:
	// "up to 14 payload bytes" for the INET case; widened to fit a
	// 2-byte port plus a 16-byte INET6 address without truncation).
	maxAddressBytes = 18
)

// ErrInvalidFamily indicates an address was created or supplied with a
// family other than INET, INET6, or unspecified.
var ErrInvalidFamily = errors.New("invalid address family")

// Address is an immutable tagged sockaddr wrapped as a capability: a
// family byte, a length byte, and up to maxAddressBytes payload bytes.
// Address objects are created by create-address, name, peername, or
// accept; the ports generated for them are typically one-shot and
// deallocated after the caller consumes the bytes.
type Address struct {
	Family uint8
	Length uint8
	Bytes  [maxAddressBytes]byte
}

// NewAddress validates family and copies bytes (truncated to
// maxAddressBytes) into a fresh immutable Address.
func NewAddress(family uint8, bytes []byte) (*Address, error) {
	if family != FamilyUnspec && family != FamilyINET && family != FamilyINET6 {
		return nil, fmt.Errorf("create address: %w", ErrInvalidFamily)
	}

	a := &Address{Family: family}
	n := copy(a.Bytes[:], bytes)
	a.Length = uint8(n) //nolint:gosec // n is bounded by maxAddressBytes above

	return a, nil
}

// Payload returns the address's raw bytes, trimmed to its recorded
// length, for the whatis-address RPC.
func (a *Address) Payload() []byte {
	return a.Bytes[:a.Length]
}
