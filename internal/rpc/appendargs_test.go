package rpc

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/hurdlab/pfinet/internal/iface"
)

func TestAppendArgsSkipsLoopbackAndUnsetFields(t *testing.T) {
	reg := iface.NewRegistry()
	reg.Add(&iface.Interface{Name: iface.LoopbackName})

	en0 := &iface.Interface{Name: "en0", DeviceName: "en0"}
	en0.SetV4(iface.V4Config{
		Addr:      netip.MustParseAddr("192.168.1.5"),
		Mask:      netip.MustParseAddr("255.255.255.0"),
		Gateway:   iface.SentinelV4,
		Broadcast: iface.SentinelV4,
	})
	reg.Add(en0)

	args := AppendArgs(reg)
	joined := strings.Join(args, " ")

	if strings.Contains(joined, "lo") && !strings.Contains(joined, "en0") {
		t.Fatal("loopback should never be emitted")
	}
	if !strings.Contains(joined, "--interface=en0") {
		t.Fatalf("expected --interface=en0, got %q", joined)
	}
	if !strings.Contains(joined, "--address=192.168.1.5") {
		t.Fatalf("expected --address, got %q", joined)
	}
	if strings.Contains(joined, "--gateway=") {
		t.Fatalf("sentinel gateway must not be emitted, got %q", joined)
	}
}
