package rpc

import (
	"net/netip"
	"testing"

	"github.com/hurdlab/pfinet/internal/iface"
	"github.com/hurdlab/pfinet/internal/stack"
	"github.com/hurdlab/pfinet/internal/stack/refstack"
	"github.com/hurdlab/pfinet/internal/translator"
)

func newIfctlTestSurface(t *testing.T) (*IfctlSurface, *iface.Registry, stack.Stack) {
	t.Helper()
	reg := iface.NewRegistry()
	stk := refstack.New()

	en0 := &iface.Interface{Name: "en0", Kind: iface.DriverEthernet, MTU: 1500}
	en0.SetV4(iface.V4Config{
		Addr:      netip.MustParseAddr("192.168.1.5"),
		Mask:      netip.MustParseAddr("255.255.255.0"),
		Gateway:   netip.MustParseAddr("192.168.1.1"),
		Broadcast: iface.SentinelV4,
	})
	reg.Add(en0)

	ctx, err := translator.New(reg, stk, 0, 0, stack.FamilyINET)
	if err != nil {
		t.Fatalf("translator.New: %v", err)
	}
	return NewIfctlSurface(ctx, nil), reg, stk
}

// TestSIOCGIFADDR implements spec.md S3: on an Ethernet interface
// configured 192.168.1.5/24 gw 192.168.1.1, the ioctl returns the
// configured address.
func TestSIOCGIFADDR(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)

	addr, err := surf.GetAddr("en0")
	if err != nil {
		t.Fatalf("GetAddr: %v", err)
	}
	if addr.String() != "192.168.1.5" {
		t.Fatalf("addr = %s, want 192.168.1.5", addr)
	}
}

func TestSIOCSIFADDRRequiresRoot(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)

	err := surf.SetAddr("en0", false, netip.MustParseAddr("10.0.0.1"))
	if err == nil {
		t.Fatal("expected access-denied without root")
	}

	if err := surf.SetAddr("en0", true, netip.MustParseAddr("192.168.1.9")); err != nil {
		t.Fatalf("SetAddr as root: %v", err)
	}
	addr, _ := surf.GetAddr("en0")
	if addr.String() != "192.168.1.9" {
		t.Fatalf("addr after set = %s, want 192.168.1.9", addr)
	}
}

func TestSIOCGIFDSTADDRUnsupported(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)
	if _, err := surf.GetDstAddr("en0"); err == nil {
		t.Fatal("expected SIOCGIFDSTADDR to be unsupported")
	}
}

func TestSIOCSIFMTURequiresPositiveValue(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)

	if err := surf.SetMTU("en0", true, 0); err == nil {
		t.Fatal("expected MTU=0 to be rejected")
	}
	if err := surf.SetMTU("en0", true, 9000); err != nil {
		t.Fatalf("SetMTU: %v", err)
	}
	mtu, _ := surf.GetMTU("en0")
	if mtu != 9000 {
		t.Fatalf("mtu = %d, want 9000", mtu)
	}
}

func TestSIOCGIFCONFDryWalkReportsByteCount(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)

	const dryWalkAmount = ^uint32(0)
	entries, byteCount, err := surf.GetConf(dryWalkAmount, 32)
	if err != nil {
		t.Fatalf("GetConf dry walk: %v", err)
	}
	if entries != nil {
		t.Fatal("dry walk must not return entries")
	}
	if byteCount != 32 {
		t.Fatalf("byteCount = %d, want 32 (1 interface * 32)", byteCount)
	}
}

func TestSIOCGIFCONFOneEntryPerInterface(t *testing.T) {
	surf, reg, _ := newIfctlTestSurface(t)
	reg.Add(&iface.Interface{Name: "en1", Kind: iface.DriverEthernet})

	entries, _, err := surf.GetConf(1024, 32)
	if err != nil {
		t.Fatalf("GetConf: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (one per interface)", len(entries))
	}
}

func TestIfctlNoSuchDevice(t *testing.T) {
	surf, _, _ := newIfctlTestSurface(t)
	if _, err := surf.GetAddr("doesnotexist"); err == nil {
		t.Fatal("expected no-such-device error")
	}
}
