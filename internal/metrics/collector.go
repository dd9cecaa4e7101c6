// Package metrics exposes pfinet's runtime counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "pfinet"
)

// Label names.
const (
	labelInterface = "interface"
	labelDirection = "direction" // "rx" or "tx"
	labelSockType  = "sock_type" // "stream", "datagram", "raw"
	labelBucket    = "bucket"    // captab bucket name
)

// -------------------------------------------------------------------------
// Collector — Prometheus pfinet metrics
// -------------------------------------------------------------------------

// Collector holds all pfinet Prometheus metrics: per-interface MIB-style
// byte/packet/drop counters, socket and capability-table population
// gauges, and TUN queue depth/drop counters (spec.md's ambient metrics
// stack, grounded on gobfd's metrics.Collector shape).
type Collector struct {
	// InterfaceBytes counts bytes moved per interface and direction.
	InterfaceBytes *prometheus.CounterVec

	// InterfacePackets counts packets moved per interface and direction.
	InterfacePackets *prometheus.CounterVec

	// InterfaceDrops counts packets dropped per interface (frame rejected
	// by the driver, or no RX-capable driver on the interface).
	InterfaceDrops *prometheus.CounterVec

	// ActiveSockets tracks the number of currently open sockets, by type.
	ActiveSockets *prometheus.GaugeVec

	// CaptabObjects tracks the number of live objects in each capability
	// bucket (the "socket" bucket, plus any future buckets).
	CaptabObjects *prometheus.GaugeVec

	// TUNQueueDepth tracks the current occupancy of each TUN driver's
	// bounded packet queue.
	TUNQueueDepth *prometheus.GaugeVec

	// TUNQueueDrops counts packets dropped from a TUN queue because it
	// was at capacity (spec.md §4.F drop-oldest policy).
	TUNQueueDrops *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.InterfaceBytes,
		c.InterfacePackets,
		c.InterfaceDrops,
		c.ActiveSockets,
		c.CaptabObjects,
		c.TUNQueueDepth,
		c.TUNQueueDrops,
	)

	return c
}

func newMetrics() *Collector {
	ifaceDirLabels := []string{labelInterface, labelDirection}
	ifaceLabels := []string{labelInterface}

	return &Collector{
		InterfaceBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interface_bytes_total",
			Help:      "Total bytes moved per interface and direction.",
		}, ifaceDirLabels),

		InterfacePackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interface_packets_total",
			Help:      "Total packets moved per interface and direction.",
		}, ifaceDirLabels),

		InterfaceDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interface_drops_total",
			Help:      "Total packets dropped per interface (frame rejected by the driver, or no RX-capable driver).",
		}, ifaceLabels),

		ActiveSockets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sockets",
			Help:      "Number of currently open sockets, by type.",
		}, []string{labelSockType}),

		CaptabObjects: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "captab_objects",
			Help:      "Number of live objects in each capability-table bucket.",
		}, []string{labelBucket}),

		TUNQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tun_queue_depth",
			Help:      "Current number of queued packets awaiting delivery to a TUN client.",
		}, ifaceLabels),

		TUNQueueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tun_queue_drops_total",
			Help:      "Total packets dropped from a TUN queue at capacity.",
		}, ifaceLabels),
	}
}

// -------------------------------------------------------------------------
// Interface counters
// -------------------------------------------------------------------------

// AddInterfaceBytes adds n to the byte counter for ifName/direction
// ("rx" or "tx").
func (c *Collector) AddInterfaceBytes(ifName, direction string, n int) {
	c.InterfaceBytes.WithLabelValues(ifName, direction).Add(float64(n))
}

// IncInterfacePackets increments the packet counter for ifName/direction.
func (c *Collector) IncInterfacePackets(ifName, direction string) {
	c.InterfacePackets.WithLabelValues(ifName, direction).Inc()
}

// IncInterfaceDrops increments the drop counter for ifName.
func (c *Collector) IncInterfaceDrops(ifName string) {
	c.InterfaceDrops.WithLabelValues(ifName).Inc()
}

// -------------------------------------------------------------------------
// Socket / capability-table gauges
// -------------------------------------------------------------------------

// SetActiveSockets sets the active-socket gauge for sockType.
func (c *Collector) SetActiveSockets(sockType string, n int) {
	c.ActiveSockets.WithLabelValues(sockType).Set(float64(n))
}

// SetCaptabObjects sets the live-object gauge for bucket.
func (c *Collector) SetCaptabObjects(bucket string, n int) {
	c.CaptabObjects.WithLabelValues(bucket).Set(float64(n))
}

// -------------------------------------------------------------------------
// TUN queue
// -------------------------------------------------------------------------

// SetTUNQueueDepth sets the queue-depth gauge for ifName.
func (c *Collector) SetTUNQueueDepth(ifName string, n int) {
	c.TUNQueueDepth.WithLabelValues(ifName).Set(float64(n))
}

// IncTUNQueueDrops increments the queue-drop counter for ifName.
func (c *Collector) IncTUNQueueDrops(ifName string) {
	c.TUNQueueDrops.WithLabelValues(ifName).Inc()
}
