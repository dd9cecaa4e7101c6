package iface

import "testing"

func TestLoopbackAlwaysFirst(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&Interface{Name: "en0"})
	reg.Add(&Interface{Name: LoopbackName})
	reg.Add(&Interface{Name: "tun0"})

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	if list[0].Name != LoopbackName {
		t.Fatalf("list[0].Name = %q, want %q", list[0].Name, LoopbackName)
	}
}

func TestLoopbackCannotBeRemoved(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&Interface{Name: LoopbackName})

	if err := reg.Remove(LoopbackName); err == nil {
		t.Fatal("expected error removing loopback")
	}
}

func TestRemoveThenIngestDropsByHandle(t *testing.T) {
	reg := NewRegistry()
	eth := &Interface{Name: "en0", ReceiveHandle: 7}
	reg.Add(eth)

	if got := reg.LookupByReceiveHandle(7); got != eth {
		t.Fatal("expected to find interface by receive handle")
	}

	if err := reg.Remove("en0"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// Invariant 3 (spec.md §8): after removal the ingest thread never
	// delivers a packet to this interface, because it is no longer
	// findable by its receive handle.
	if got := reg.LookupByReceiveHandle(7); got != nil {
		t.Fatal("removed interface still resolvable by receive handle")
	}
}
