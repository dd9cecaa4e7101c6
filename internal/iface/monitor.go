package iface

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/mdlayher/netlink"
)

// Event is an interface change observed by the Monitor.
type Event struct {
	Name  string
	Index int
	Up    bool
}

// Monitor watches for interface changes. internal/netio/ifmon.go in the
// teacher only stubs this with a comment that "a future implementation
// will use mdlayher/netlink with NETLINK_ROUTE" — this is that
// implementation, subscribing to RTM_NEWLINK/RTM_DELLINK so the
// interface-configuration engine (spec.md §4.I) observes carrier changes
// without polling.
type Monitor interface {
	Run(ctx context.Context) error
	Events() <-chan Event
	Close() error
}

// netlink group and message-type constants (linux/rtnetlink.h), named
// here rather than imported from x/sys/unix to keep this file buildable
// on non-Linux hosts that still want to compile the rest of the tree.
const (
	rtmGroupLink = 0x1 // RTNLGRP_LINK
	rtmNewLink   = 16
	rtmDelLink   = 17
	iflaIfname   = 3
	ifiFlagsOff  = 8 // offset of ifi_flags within ifinfomsg
	iffUp        = 0x1
)

// NetlinkMonitor implements Monitor using a real NETLINK_ROUTE socket.
type NetlinkMonitor struct {
	conn   *netlink.Conn
	events chan Event
	done   chan struct{}
}

// NewNetlinkMonitor opens a NETLINK_ROUTE socket subscribed to link
// change multicast groups.
func NewNetlinkMonitor() (*NetlinkMonitor, error) {
	conn, err := netlink.Dial(0, &netlink.Config{Groups: 1 << (rtmGroupLink - 1)})
	if err != nil {
		return nil, fmt.Errorf("open netlink route socket: %w", err)
	}

	return &NetlinkMonitor{
		conn:   conn,
		events: make(chan Event, 32),
		done:   make(chan struct{}),
	}, nil
}

// Run blocks receiving link-change multicast messages until ctx is
// cancelled or the socket closes.
func (m *NetlinkMonitor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = m.conn.Close()
	}()

	for {
		msgs, err := m.conn.Receive()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("netlink receive: %w", err)
			}
		}

		for _, msg := range msgs {
			if ev, ok := decodeLinkEvent(msg); ok {
				select {
				case m.events <- ev:
				default:
					// Drop on a full channel rather than block the
					// receive loop; a slow consumer will catch up on
					// the next poll of the interface registry.
				}
			}
		}
	}
}

// decodeLinkEvent parses an ifinfomsg + attribute list out of a raw
// netlink message, extracting the interface name and IFF_UP bit.
func decodeLinkEvent(msg netlink.Message) (Event, bool) {
	if msg.Header.Type != rtmNewLink && msg.Header.Type != rtmDelLink {
		return Event{}, false
	}

	const ifinfomsgLen = 16
	if len(msg.Data) < ifinfomsgLen {
		return Event{}, false
	}

	index := int(binary.LittleEndian.Uint32(msg.Data[4:8]))
	flags := binary.LittleEndian.Uint32(msg.Data[ifiFlagsOff : ifiFlagsOff+4])

	ad, err := netlink.NewAttributeDecoder(msg.Data[ifinfomsgLen:])
	if err != nil {
		return Event{}, false
	}

	var name string
	for ad.Next() {
		if ad.Type() == iflaIfname {
			name = ad.String()
		}
	}

	return Event{
		Name:  name,
		Index: index,
		Up:    flags&iffUp != 0 && msg.Header.Type == rtmNewLink,
	}, true
}

// Events returns the channel of observed interface changes.
func (m *NetlinkMonitor) Events() <-chan Event { return m.events }

// Close releases the underlying netlink socket.
func (m *NetlinkMonitor) Close() error {
	return m.conn.Close()
}

// StubMonitor is a no-op Monitor for platforms or tests without a real
// NETLINK_ROUTE socket available, grounded on internal/netio/ifmon.go's
// StubInterfaceMonitor.
type StubMonitor struct {
	events chan Event
}

// NewStubMonitor creates a Monitor that never emits events.
func NewStubMonitor() *StubMonitor {
	return &StubMonitor{events: make(chan Event)}
}

func (s *StubMonitor) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *StubMonitor) Events() <-chan Event { return s.events }
func (s *StubMonitor) Close() error         { return nil }

var (
	_ Monitor = (*NetlinkMonitor)(nil)
	_ Monitor = (*StubMonitor)(nil)
)
