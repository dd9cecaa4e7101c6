package socket

import (
	"testing"

	"github.com/hurdlab/pfinet/internal/captab"
	"github.com/hurdlab/pfinet/internal/stack"
	"github.com/hurdlab/pfinet/internal/stack/refstack"
)

func TestSocketClosesOnLastUserDrop(t *testing.T) {
	stk := refstack.New()
	fd, err := stk.Socket(stack.FamilyINET, stack.TypeDatagram)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}

	sock := New(stk, fd)
	sock.AddUser() // second view, e.g. from Duplicate

	if sock.Closed() {
		t.Fatal("socket closed too early")
	}

	tab := captab.NewTable()
	bucket, _ := tab.CreateBucket("identity")
	class, _ := bucket.CreateClass("identity", nil)

	sock.DropUser(bucket)
	if sock.Closed() {
		t.Fatal("socket closed after only one of two drops")
	}
	sock.DropUser(bucket)
	if !sock.Closed() {
		t.Fatal("socket not closed after last drop")
	}
	if !stk.IsClosed(fd) {
		t.Fatal("stack descriptor was not closed")
	}
	_ = class
}

func TestIdentityAllocatedLazilyOnce(t *testing.T) {
	stk := refstack.New()
	fd, _ := stk.Socket(stack.FamilyINET, stack.TypeDatagram)
	sock := New(stk, fd)

	tab := captab.NewTable()
	bucket, _ := tab.CreateBucket("identity")
	class, _ := bucket.CreateClass("identity", nil)

	h1 := sock.Identity(bucket, class)
	h2 := sock.Identity(bucket, class)
	if h1 != h2 {
		t.Fatal("identity was allocated twice")
	}
}

func TestAddressFamilyValidation(t *testing.T) {
	if _, err := NewAddress(99, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for invalid family")
	}

	a, err := NewAddress(FamilyINET, []byte{127, 0, 0, 1})
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	if len(a.Payload()) != 4 {
		t.Fatalf("payload length = %d, want 4", len(a.Payload()))
	}
}
