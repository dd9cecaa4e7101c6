// Package translator holds the single scoped-state value threaded
// through the RPC demuxer and every RPC surface (spec.md §9 "Global
// state → scoped state"): the capability bucket, the interface registry,
// the stack, and the owner identity used for isroot promotion. Grounded
// on internal/bfd/manager.go's Manager, which plays the same
// "one value holds everything a session handler needs" role for BFD.
package translator

import (
	"github.com/hurdlab/pfinet/internal/captab"
	"github.com/hurdlab/pfinet/internal/iface"
	"github.com/hurdlab/pfinet/internal/stack"
)

// Class names used in the capability table's "socket" bucket.
const (
	ClassUserView = "user-view"
	ClassAddress  = "address"
	ClassIdentity = "identity"
)

// BucketSocket is the name of the capability bucket holding sockets,
// addresses, and identity ports.
const BucketSocket = "socket"

// Context is the per-translator scoped state. One Context is created at
// startup and passed by reference to every RPC handler; nothing here is
// a package-level global.
type Context struct {
	Captab   *captab.Table
	Ifaces   *iface.Registry
	Stack    stack.Stack
	SocketBk *captab.Bucket

	// OwnerUID/OwnerGID identify the translator's configured owner,
	// used to recompute isroot on reauthenticate/restrict-auth
	// (spec.md §4.K).
	OwnerUID uint32
	OwnerGID uint32

	// DefaultFamily is the family bound at translator install
	// (spec.md §4.J create's domain source).
	DefaultFamily stack.Family
}

// New builds a Context with a fresh capability table and its socket
// bucket; the user-view, address, and identity classes are registered
// later, by rpc.NewSocketSurface.
func New(reg *iface.Registry, stk stack.Stack, ownerUID, ownerGID uint32, defaultFamily stack.Family) (*Context, error) {
	tab := captab.NewTable()
	bk, err := tab.CreateBucket(BucketSocket)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		Captab:        tab,
		Ifaces:        reg,
		Stack:         stk,
		SocketBk:      bk,
		OwnerUID:      ownerUID,
		OwnerGID:      ownerGID,
		DefaultFamily: defaultFamily,
	}
	return ctx, nil
}

// IsRoot reports whether a caller's credentials match the translator's
// configured owner (spec.md §4.J "promoting when the caller's
// authentication matches the owning user").
func (c *Context) IsRoot(callerUID uint32, masterIsRoot bool) bool {
	return masterIsRoot || callerUID == c.OwnerUID
}

// WithDefaultFamily returns a shallow copy of c with DefaultFamily
// overridden, sharing the same capability table, interface registry, and
// stack. It backs the additional family-restricted control nodes bound
// via -4/-6 (spec.md §6: "bind additional listener sockets restricted to
// a family"), which serve the same translator state as the primary node
// but default newly created sockets to one family.
func (c *Context) WithDefaultFamily(family stack.Family) *Context {
	clone := *c
	clone.DefaultFamily = family
	return &clone
}
