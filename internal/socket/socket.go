// Package socket implements the translator's socket object, its
// client-facing user-view capability, and the address object wrapping a
// sockaddr. A [Socket] wraps one stack-level socket descriptor and is
// shared by every [UserView] duplicated from it; the stack socket closes
// exactly when the last user view releases its reference.
package socket

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hurdlab/pfinet/internal/captab"
	"github.com/hurdlab/pfinet/internal/stack"
)

// Sentinel errors for socket operations.
var (
	// ErrClosed indicates an operation on a socket that has already
	// released its stack descriptor.
	ErrClosed = errors.New("socket closed")

	// ErrUnsupportedOperation indicates a surface exists but the
	// requested verb is not implemented for sockets (e.g. seek).
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// noIdentity is the sentinel value meaning "identity not yet allocated".
const noIdentity = 0

// Socket wraps one stack-level socket descriptor. It is created by
// socket-create and by accept, and destroyed when the last user view
// sharing it is released: the stack socket closes and the identity
// handle (if any was allocated) is destroyed.
type Socket struct {
	mu    sync.Mutex
	fd    stack.Descriptor
	stk   stack.Stack
	closed bool

	// identity is lazily allocated on the first identity RPC so sockets
	// that never need one pay nothing for it.
	identity     captab.Handle
	hasIdentity  bool
	identityOnce sync.Once

	// userRefs is independent of the capability-table refcount: it
	// counts the [UserView]s sharing this socket, not RPC-level
	// borrowed references.
	userRefs atomic.Int32

	nonBlocking atomic.Bool
}

// New allocates a socket wrapping an already-created stack descriptor.
// The caller holds the first (and only) user reference; release it with
// [Socket.DropUser] when the owning user view is destroyed.
func New(stk stack.Stack, fd stack.Descriptor) *Socket {
	s := &Socket{stk: stk, fd: fd}
	s.userRefs.Store(1)
	return s
}

// Descriptor returns the underlying stack-level descriptor.
func (s *Socket) Descriptor() stack.Descriptor { return s.fd }

// NonBlocking reports the socket's current non-blocking bit. Per the
// spec's don't-wait propagation rule, callers must re-read this fresh for
// every request rather than caching it.
func (s *Socket) NonBlocking() bool { return s.nonBlocking.Load() }

// SetNonBlocking updates the socket's non-blocking bit.
func (s *Socket) SetNonBlocking(v bool) { s.nonBlocking.Store(v) }

// AddUser increments the user-view refcount; called by [NewUserView] and
// by duplicate/reauthenticate.
func (s *Socket) AddUser() { s.userRefs.Add(1) }

// DropUser decrements the user-view refcount. On reaching zero, the stack
// socket is closed and any allocated identity handle is destroyed.
func (s *Socket) DropUser(identityBucket *captab.Bucket) {
	if s.userRefs.Add(-1) > 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	_ = s.stk.Close(s.fd)

	if s.hasIdentity && identityBucket != nil {
		_ = identityBucket.DestroyRight(s.identity)
	}
}

// Identity lazily allocates an identity handle on first use. The handle's
// mere existence uniquely identifies this socket across clients for the
// lifetime of the process.
func (s *Socket) Identity(identityBucket *captab.Bucket, identityClass *captab.Class) captab.Handle {
	s.identityOnce.Do(func() {
		s.mu.Lock()
		s.identity = identityBucket.CreatePort(identityClass, s)
		s.hasIdentity = true
		s.mu.Unlock()
	})
	return s.identity
}

// Closed reports whether the stack descriptor has already been released.
func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// guardClosed returns ErrClosed if the socket has already released its
// stack descriptor.
func (s *Socket) guardClosed() error {
	if s.Closed() {
		return fmt.Errorf("socket op: %w", ErrClosed)
	}
	return nil
}
