package config_test

import (
	"testing"

	"github.com/hurdlab/pfinet/internal/config"
	"github.com/hurdlab/pfinet/internal/iface"
)

func TestParseArgsSingleInterface(t *testing.T) {
	t.Parallel()

	parsed, err := config.ParseArgs([]string{
		"-i", "en0", "-a", "192.168.1.5", "-m", "255.255.255.0", "-g", "192.168.1.1",
	})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	// Slot 0 is always the loopback interface, pre-seeded before any -i
	// is seen (options before the first -i configure it).
	if len(parsed.Interfaces) != 2 {
		t.Fatalf("Interfaces = %d, want 2 (loopback + en0)", len(parsed.Interfaces))
	}
	if parsed.Interfaces[0].Name != iface.LoopbackName {
		t.Errorf("Interfaces[0].Name = %q, want %q", parsed.Interfaces[0].Name, iface.LoopbackName)
	}
	spec := parsed.Interfaces[1]
	if spec.Name != "en0" {
		t.Errorf("Name = %q, want en0", spec.Name)
	}
	if spec.Addr.String() != "192.168.1.5" {
		t.Errorf("Addr = %s, want 192.168.1.5", spec.Addr)
	}
	if spec.Gateway.String() != "192.168.1.1" {
		t.Errorf("Gateway = %s, want 192.168.1.1", spec.Gateway)
	}
}

func TestParseArgsRepeatedInterfaceReusesSlot(t *testing.T) {
	t.Parallel()

	parsed, err := config.ParseArgs([]string{
		"-i", "en0", "-a", "10.0.0.1",
		"-i", "en1", "-a", "10.0.1.1",
		"-i", "en0", "-m", "255.0.0.0",
	})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if len(parsed.Interfaces) != 3 {
		t.Fatalf("Interfaces = %d, want 3 (loopback + en0 + en1, re-selecting en0 must not create a fourth slot)", len(parsed.Interfaces))
	}
	en0 := parsed.Interfaces[1]
	if en0.Mask.String() != "255.0.0.0" {
		t.Errorf("en0.Mask = %s, want 255.0.0.0 (set via re-selected slot)", en0.Mask)
	}
	if en0.Addr.String() != "10.0.0.1" {
		t.Errorf("en0.Addr = %s, want preserved 10.0.0.1", en0.Addr)
	}
}

func TestParseArgsAddressWithNoArgumentResetsFields(t *testing.T) {
	t.Parallel()

	parsed, err := config.ParseArgs([]string{"-i", "en0", "-a", "-i", "en1"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	spec := parsed.Interfaces[1]
	if spec.Addr.String() != "0.0.0.0" {
		t.Errorf("Addr = %s, want 0.0.0.0 default", spec.Addr)
	}
	if spec.Mask.String() != "255.0.0.0" {
		t.Errorf("Mask = %s, want 255.0.0.0 default", spec.Mask)
	}
	if !iface.IsSentinel(spec.Gateway) {
		t.Error("Gateway should be reset to sentinel")
	}
}

func TestParseArgsIPv6Addresses(t *testing.T) {
	t.Parallel()

	parsed, err := config.ParseArgs([]string{
		"-i", "en0", "-A", "2001:db8::1", "-A", "2001:db8::2",
	})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if len(parsed.Interfaces[1].V6) != 2 {
		t.Fatalf("V6 addrs = %d, want 2", len(parsed.Interfaces[1].V6))
	}
}

func TestParseArgsFamilyRestrictedNodes(t *testing.T) {
	t.Parallel()

	parsed, err := config.ParseArgs([]string{"-4", "/var/run/pfinet4", "-6", "/var/run/pfinet6"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if parsed.Interface4Path != "/var/run/pfinet4" {
		t.Errorf("Interface4Path = %q, want /var/run/pfinet4", parsed.Interface4Path)
	}
	if parsed.Interface6Path != "/var/run/pfinet6" {
		t.Errorf("Interface6Path = %q, want /var/run/pfinet6", parsed.Interface6Path)
	}
}

func TestParseArgsFamilyRestrictedNodeRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := config.ParseArgs([]string{"-4"})
	if err == nil {
		t.Fatal("expected error for -4 with no path")
	}
}

func TestParseArgsRejectsMulticastAddress(t *testing.T) {
	t.Parallel()

	_, err := config.ParseArgs([]string{"-i", "en0", "-a", "224.0.0.1"})
	if err == nil {
		t.Fatal("expected multicast address to be rejected")
	}
}

func TestParseArgsFlagBeforeInterfaceConfiguresLoopback(t *testing.T) {
	t.Parallel()

	parsed, err := config.ParseArgs([]string{"-a", "10.0.0.1"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if len(parsed.Interfaces) != 1 {
		t.Fatalf("Interfaces = %d, want 1 (loopback only)", len(parsed.Interfaces))
	}
	if parsed.Interfaces[0].Name != iface.LoopbackName {
		t.Errorf("Name = %q, want %q", parsed.Interfaces[0].Name, iface.LoopbackName)
	}
	if parsed.Interfaces[0].Addr.String() != "10.0.0.1" {
		t.Errorf("Addr = %s, want 10.0.0.1 (applied to loopback slot)", parsed.Interfaces[0].Addr)
	}
}

func TestParseArgsUnknownFlag(t *testing.T) {
	t.Parallel()

	_, err := config.ParseArgs([]string{"--bogus"})
	if err == nil {
		t.Fatal("expected error for unrecognized flag")
	}
}
