package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/hurdlab/pfinet/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.InterfaceBytes == nil || c.InterfacePackets == nil || c.InterfaceDrops == nil {
		t.Fatal("interface metrics not constructed")
	}
	if c.ActiveSockets == nil || c.CaptabObjects == nil {
		t.Fatal("socket/captab metrics not constructed")
	}
	if c.TUNQueueDepth == nil || c.TUNQueueDrops == nil {
		t.Fatal("TUN queue metrics not constructed")
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestInterfaceCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.AddInterfaceBytes("en0", "rx", 100)
	c.AddInterfaceBytes("en0", "rx", 50)
	c.IncInterfacePackets("en0", "rx")
	c.IncInterfacePackets("en0", "rx")
	c.IncInterfaceDrops("en0")

	if got := counterValue(t, c.InterfaceBytes, "en0", "rx"); got != 150 {
		t.Errorf("InterfaceBytes = %v, want 150", got)
	}
	if got := counterValue(t, c.InterfacePackets, "en0", "rx"); got != 2 {
		t.Errorf("InterfacePackets = %v, want 2", got)
	}
	if got := counterValue(t, c.InterfaceDrops, "en0"); got != 1 {
		t.Errorf("InterfaceDrops = %v, want 1", got)
	}
}

func TestSocketAndCaptabGauges(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetActiveSockets("datagram", 3)
	c.SetCaptabObjects("socket", 5)

	if got := gaugeValue(t, c.ActiveSockets, "datagram"); got != 3 {
		t.Errorf("ActiveSockets = %v, want 3", got)
	}
	if got := gaugeValue(t, c.CaptabObjects, "socket"); got != 5 {
		t.Errorf("CaptabObjects = %v, want 5", got)
	}
}

func TestTUNQueueMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetTUNQueueDepth("tun0", 42)
	c.IncTUNQueueDrops("tun0")
	c.IncTUNQueueDrops("tun0")

	if got := gaugeValue(t, c.TUNQueueDepth, "tun0"); got != 42 {
		t.Errorf("TUNQueueDepth = %v, want 42", got)
	}
	if got := counterValue(t, c.TUNQueueDrops, "tun0"); got != 2 {
		t.Errorf("TUNQueueDrops = %v, want 2", got)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
