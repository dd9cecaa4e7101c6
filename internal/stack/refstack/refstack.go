// Package refstack is a minimal, in-process reference implementation of
// the stack.Stack contract: enough loopback-capable datagram delivery and
// software interface bookkeeping to exercise the rest of the translator
// and the S1 loopback-round-trip scenario from spec.md §8. It is
// explicitly not a production TCP/IP stack (spec.md §1 treats the real
// stack as an opaque, out-of-scope collaborator).
package refstack

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/hurdlab/pfinet/internal/stack"
)

type socketState struct {
	family      stack.Family
	typ         stack.SockType
	bound       netip.AddrPort
	peer        netip.AddrPort
	connected   bool
	closed      bool
	inbox       chan stack.RecvResult
	nonBlocking bool
}

// Ref is the reference stack. Sockets bound to 127.0.0.1/::1 deliver to
// each other in-process without touching a real network device.
type Ref struct {
	mu      sync.Mutex
	sockets map[stack.Descriptor]*socketState
	byAddr  map[netip.AddrPort]stack.Descriptor
	nextFD  stack.Descriptor

	ifaces map[string]stack.IfaceV4Config
	up     map[string]bool
}

// New constructs an empty reference stack.
func New() *Ref {
	return &Ref{
		sockets: make(map[stack.Descriptor]*socketState),
		byAddr:  make(map[netip.AddrPort]stack.Descriptor),
		ifaces:  make(map[string]stack.IfaceV4Config),
		up:      make(map[string]bool),
	}
}

func (r *Ref) Socket(family stack.Family, typ stack.SockType) (stack.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextFD++
	fd := r.nextFD
	r.sockets[fd] = &socketState{
		family: family,
		typ:    typ,
		inbox:  make(chan stack.RecvResult, 16),
	}
	return fd, nil
}

func (r *Ref) get(fd stack.Descriptor) (*socketState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sockets[fd]
	if !ok || s.closed {
		return nil, fmt.Errorf("refstack: %w", stack.ErrBadFD)
	}
	return s, nil
}

func (r *Ref) Bind(fd stack.Descriptor, addr netip.AddrPort) error {
	s, err := r.get(fd)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byAddr[addr]; taken {
		return fmt.Errorf("refstack bind %s: %w", addr, stack.ErrAddrInUse)
	}
	s.bound = addr
	r.byAddr[addr] = fd
	return nil
}

func (r *Ref) Listen(fd stack.Descriptor, backlog int) error {
	_, err := r.get(fd)
	return err
}

func (r *Ref) Connect(_ context.Context, fd stack.Descriptor, addr netip.AddrPort) error {
	s, err := r.get(fd)
	if err != nil {
		return err
	}
	s.peer = addr
	s.connected = true
	return nil
}

func (r *Ref) Accept(_ context.Context, fd stack.Descriptor) (stack.Descriptor, netip.AddrPort, error) {
	return 0, netip.AddrPort{}, fmt.Errorf("refstack accept: %w", stack.ErrNotConn)
}

func (r *Ref) Send(_ context.Context, fd stack.Descriptor, data []byte, dst *netip.AddrPort, nonBlocking bool) (int, error) {
	s, err := r.get(fd)
	if err != nil {
		return 0, err
	}

	target := s.peer
	if dst != nil {
		target = *dst
	}

	r.mu.Lock()
	destFD, ok := r.byAddr[target]
	r.mu.Unlock()
	if !ok {
		// No listener bound at the destination: datagram silently
		// vanishes, matching real UDP semantics.
		return len(data), nil
	}

	destSock, err := r.get(destFD)
	if err != nil {
		return len(data), nil
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	select {
	case destSock.inbox <- stack.RecvResult{Data: cp, Peer: s.bound}:
	default:
		// Inbox full: drop, matching unreliable datagram delivery.
	}

	return len(data), nil
}

func (r *Ref) Recv(ctx context.Context, fd stack.Descriptor, max int, nonBlocking bool) (stack.RecvResult, error) {
	s, err := r.get(fd)
	if err != nil {
		return stack.RecvResult{}, err
	}

	if nonBlocking {
		select {
		case res := <-s.inbox:
			return trim(res, max), nil
		default:
			return stack.RecvResult{}, fmt.Errorf("refstack recv: %w", stack.ErrWouldBlock)
		}
	}

	select {
	case res := <-s.inbox:
		return trim(res, max), nil
	case <-ctx.Done():
		return stack.RecvResult{}, fmt.Errorf("refstack recv: %w", stack.ErrInterrupted)
	}
}

func trim(res stack.RecvResult, max int) stack.RecvResult {
	if max > 0 && len(res.Data) > max {
		res.Data = res.Data[:max]
	}
	return res
}

func (r *Ref) Shutdown(fd stack.Descriptor, how int) error {
	_, err := r.get(fd)
	return err
}

func (r *Ref) GetSockOpt(fd stack.Descriptor, level, name int) ([]byte, error) {
	if _, err := r.get(fd); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *Ref) SetSockOpt(fd stack.Descriptor, level, name int, value []byte) error {
	_, err := r.get(fd)
	return err
}

func (r *Ref) Close(fd stack.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sockets[fd]
	if !ok {
		return fmt.Errorf("refstack close: %w", stack.ErrBadFD)
	}
	s.closed = true
	for addr, owner := range r.byAddr {
		if owner == fd {
			delete(r.byAddr, addr)
		}
	}
	return nil
}

func (r *Ref) LocalAddr(fd stack.Descriptor) (netip.AddrPort, error) {
	s, err := r.get(fd)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return s.bound, nil
}

func (r *Ref) PeerAddr(fd stack.Descriptor) (netip.AddrPort, error) {
	s, err := r.get(fd)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if !s.connected {
		return netip.AddrPort{}, fmt.Errorf("refstack peer addr: %w", stack.ErrNotConn)
	}
	return s.peer, nil
}

func (r *Ref) Readable(fd stack.Descriptor) int {
	s, err := r.get(fd)
	if err != nil {
		return 0
	}
	return len(s.inbox)
}

func (r *Ref) Select(ctx context.Context, fd stack.Descriptor, mask stack.SelectMask, timeout *time.Duration) (stack.SelectMask, error) {
	s, err := r.get(fd)
	if err != nil {
		return 0, err
	}

	var ready stack.SelectMask
	if mask&stack.SelectWrite != 0 {
		ready |= stack.SelectWrite
	}
	if mask&stack.SelectRead != 0 && len(s.inbox) > 0 {
		ready |= stack.SelectRead
	}
	if ready != 0 || timeout != nil && *timeout == 0 {
		return ready, nil
	}

	var timer <-chan time.Time
	if timeout != nil {
		t := time.NewTimer(*timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("refstack select: %w", stack.ErrInterrupted)
		case <-timer:
			return 0, nil
		case res := <-s.inbox:
			s.inbox <- res // put back, select must not consume
			return mask & (stack.SelectRead | stack.SelectWrite), nil
		}
	}
}

func (r *Ref) AddInterface(name string, v4 stack.IfaceV4Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ifaces[name] = v4
	return nil
}

func (r *Ref) RemoveInterface(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ifaces, name)
	delete(r.up, name)
	return nil
}

func (r *Ref) SetInterfaceUp(name string, up bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.up[name] = up
	return nil
}

func (r *Ref) EnableIPv6Autoconf(name string) error {
	return nil
}

func (r *Ref) AddIPv6Address(name string, addr netip.Addr) error {
	return nil
}

func (r *Ref) SetDefaultRoute(gateway netip.Addr, v6 bool) error {
	return nil
}

// IsClosed reports whether fd has been closed, for test assertions.
func (r *Ref) IsClosed(fd stack.Descriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sockets[fd]
	return ok && s.closed
}

var _ stack.Stack = (*Ref)(nil)
