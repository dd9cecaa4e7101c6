// Package ingest implements the packet-ingest thread (spec.md §4.H): a
// single dedicated pump that blocks for device-delivery messages, routes
// each one to the owning interface by receive handle, and drives that
// interface's RX. It is the only thread that ever calls RX, so interface
// reception is strictly serialized. Grounded on
// internal/netio/listener.go's context-aware receive loop with pooled
// buffers, generalized from a single BFD UDP socket to a fan-in over
// every interface's device-delivery source.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hurdlab/pfinet/internal/drivers/ethernet"
	"github.com/hurdlab/pfinet/internal/iface"
)

// Delivery is one device-delivery message: a raw frame destined for the
// interface identified by ReceiveHandle.
type Delivery struct {
	ReceiveHandle uint64
	EtherType     ethernet.EtherType
	Multicast     bool
	Frame         []byte
}

// Source is anything the pump can block on for the next delivery message.
// An Ethernet device-port reader satisfies this; TUN and loopback never
// need it, since their data paths bypass the ingest thread entirely
// (spec.md §4.F/§4.G).
type Source interface {
	Recv(ctx context.Context) (Delivery, error)
}

// RXDriver is the subset of a driver's behavior the pump needs to
// validate and strip a frame before handoff to the stack. Satisfied by
// *ethernet.Driver.
type RXDriver interface {
	RX(frame []byte, etherType ethernet.EtherType, multicast bool) ([]byte, error)
}

// InputFunc delivers a stripped payload into the stack's input routine
// for the given interface.
type InputFunc func(i *iface.Interface, payload []byte) error

var framePool = sync.Pool{New: func() any { b := make([]byte, 65536); return &b }}

// sentinel errors
var (
	// ErrNoSuchInterface describes a delivery message whose receive
	// handle no longer resolves to a live interface — the interface was
	// removed after the message was enqueued (spec.md §4.H). Pump drops
	// and logs such messages; it does not return this error.
	ErrNoSuchInterface = errors.New("ingest: no such interface")
)

// MetricsSink receives per-interface counters as the pump processes
// deliveries. *metrics.Collector satisfies this; tests can supply a
// no-op or a recording fake without importing the metrics package.
type MetricsSink interface {
	AddInterfaceBytes(ifName, direction string, n int)
	IncInterfacePackets(ifName, direction string)
	IncInterfaceDrops(ifName string)
}

type noopMetrics struct{}

func (noopMetrics) AddInterfaceBytes(string, string, int) {}
func (noopMetrics) IncInterfacePackets(string, string)    {}
func (noopMetrics) IncInterfaceDrops(string)              {}

// Pump is the single ingest thread's state: the interface registry it
// resolves receive handles against, and a per-interface driver lookup.
type Pump struct {
	reg     *iface.Registry
	drivers func(i *iface.Interface) (RXDriver, bool)
	input   InputFunc
	log     *slog.Logger
	metrics MetricsSink
}

// New creates a Pump. drivers resolves an interface to its RX driver
// (nil, false if the interface has no RX-capable driver, e.g. loopback or
// TUN); input hands the stripped payload to the stack.
func New(reg *iface.Registry, drivers func(i *iface.Interface) (RXDriver, bool), input InputFunc, log *slog.Logger) *Pump {
	if log == nil {
		log = slog.Default()
	}
	return &Pump{reg: reg, drivers: drivers, input: input, log: log.With(slog.String("component", "ingest")), metrics: noopMetrics{}}
}

// SetMetrics installs the counter sink used by subsequent deliveries.
func (p *Pump) SetMetrics(m MetricsSink) {
	if m == nil {
		m = noopMetrics{}
	}
	p.metrics = m
}

// Run blocks on src for delivery messages until ctx is cancelled. This is
// the ONLY call site that invokes a driver's RX method; running more than
// one Pump over the same Source would break the serialization invariant
// spec.md §4.H requires.
func (p *Pump) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingest pump: %w", err)
		}

		d, err := src.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("ingest pump: %w", err)
			}
			p.log.Warn("ingest receive error", slog.Any("err", err))
			continue
		}

		p.deliver(d)
	}
}

// deliver resolves one message's destination interface and drives RX.
// Messages whose interface has been removed are silently dropped, per
// spec.md §4.H.
func (p *Pump) deliver(d Delivery) {
	ifc := p.reg.LookupByReceiveHandle(d.ReceiveHandle)
	if ifc == nil {
		p.log.Debug("dropping delivery for removed interface", slog.Uint64("handle", d.ReceiveHandle))
		return
	}

	drv, ok := p.drivers(ifc)
	if !ok {
		p.log.Warn("interface has no RX-capable driver", slog.String("iface", ifc.Name))
		p.metrics.IncInterfaceDrops(ifc.Name)
		return
	}

	payload, err := drv.RX(d.Frame, d.EtherType, d.Multicast)
	if err != nil {
		p.log.Debug("frame rejected by driver", slog.String("iface", ifc.Name), slog.Any("err", err))
		p.metrics.IncInterfaceDrops(ifc.Name)
		return
	}

	p.metrics.AddInterfaceBytes(ifc.Name, "rx", len(payload))
	p.metrics.IncInterfacePackets(ifc.Name, "rx")

	if err := p.input(ifc, payload); err != nil {
		p.log.Warn("stack input failed", slog.String("iface", ifc.Name), slog.Any("err", err))
	}
}

// AcquireBuffer returns a pooled scratch buffer for a Source
// implementation to read a frame into, mirroring bfd.PacketPool's usage
// in internal/netio/listener.go.
func AcquireBuffer() *[]byte {
	buf, _ := framePool.Get().(*[]byte)
	return buf
}

// ReleaseBuffer returns a buffer obtained from AcquireBuffer.
func ReleaseBuffer(buf *[]byte) {
	framePool.Put(buf)
}
