// Package loopback implements the loopback driver (spec.md §4.G): a
// minimal link-type tag with no independent data path, since all
// loopback traffic is handled by the embedded stack's own loopback
// delivery. Grounded on original_source's loopback network-interface
// shape and on the teacher's small, field-only driver state structs.
package loopback

// Driver holds the static identity the interface registry needs for a
// loopback interface. It owns no queue and no device port: spec.md §4.G
// states all data paths are the stack's built-in loopback, so RX/TX never
// cross this type.
type Driver struct {
	Name     string
	LinkType uint16
	MTU      int
}

// New creates a loopback driver descriptor for the given interface name.
func New(name string, mtu int) *Driver {
	return &Driver{Name: name, MTU: mtu}
}
