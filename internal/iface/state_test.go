package iface

import "testing"

func TestOpStateTransitions(t *testing.T) {
	state := OpDown

	state, changed := Apply(state, EventAdminUp)
	if !changed || state != OpTesting {
		t.Fatalf("after AdminUp: state=%s changed=%v", state, changed)
	}

	state, changed = Apply(state, EventCarrierUp)
	if !changed || state != OpUp {
		t.Fatalf("after CarrierUp: state=%s changed=%v", state, changed)
	}

	state, changed = Apply(state, EventCarrierDown)
	if !changed || state != OpTesting {
		t.Fatalf("after CarrierDown: state=%s changed=%v", state, changed)
	}
}

func TestOpStateIgnoresUnknownTransition(t *testing.T) {
	state, changed := Apply(OpDown, EventCarrierUp)
	if changed || state != OpDown {
		t.Fatalf("unlisted transition should be ignored, got state=%s changed=%v", state, changed)
	}
}
