// root.go implements the translator's root-node trivfs control RPCs
// (spec.md §6): io_read/io_write return empty/deny, stat is a no-op,
// goaway exits.
package rpc

import "fmt"

// RootSurface implements the root node's deliberately trivial I/O
// surface.
type RootSurface struct {
	onGoAway func(retainBootstrap bool) error
}

// NewRootSurface builds a root surface that invokes onGoAway when the
// client requests shutdown.
func NewRootSurface(onGoAway func(retainBootstrap bool) error) *RootSurface {
	return &RootSurface{onGoAway: onGoAway}
}

// IoRead always returns zero bytes (spec.md §6: "return empty/deny").
func (s *RootSurface) IoRead(int) ([]byte, error) {
	return nil, nil
}

// IoWrite always denies the write.
func (s *RootSurface) IoWrite([]byte) (int, error) {
	return 0, fmt.Errorf("root io_write: %w", ErrAccessDenied)
}

// Stat is a no-op; the root node carries no meaningful metadata.
func (s *RootSurface) Stat() (StatInfo, error) {
	return StatInfo{}, nil
}

// GoAway triggers translator shutdown.
func (s *RootSurface) GoAway(retainBootstrap bool) error {
	if s.onGoAway == nil {
		return nil
	}
	return s.onGoAway(retainBootstrap)
}
