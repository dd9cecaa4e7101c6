package loopback

import "testing"

func TestNewSetsFields(t *testing.T) {
	d := New("lo", 65536)
	if d.Name != "lo" || d.MTU != 65536 {
		t.Fatalf("unexpected driver: %+v", d)
	}
}
