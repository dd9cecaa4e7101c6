package captab

import (
	"errors"
	"testing"
)

func TestCreateAndLookup(t *testing.T) {
	tab := NewTable()
	bucket, err := tab.CreateBucket("sockets")
	if err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	var cleaned bool
	class, err := bucket.CreateClass("socket-user", func(payload any) {
		cleaned = true
	})
	if err != nil {
		t.Fatalf("create class: %v", err)
	}

	h := bucket.CreatePort(class, 42)

	obj, err := bucket.LookupByName(h, class)
	if err != nil {
		t.Fatalf("lookup by name: %v", err)
	}
	if obj.Payload() != 42 {
		t.Fatalf("payload = %v, want 42", obj.Payload())
	}

	// Balance the borrowed reference from LookupByName, then the
	// original CreatePort reference.
	bucket.Deref(obj)
	if cleaned {
		t.Fatal("cleanup ran before last deref")
	}
	bucket.Deref(obj)
	if !cleaned {
		t.Fatal("cleanup did not run after last deref")
	}

	if _, err := bucket.LookupByName(h, class); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup after cleanup: got %v, want ErrNotFound", err)
	}
}

func TestLookupWrongClass(t *testing.T) {
	tab := NewTable()
	bucket, _ := tab.CreateBucket("sockets")
	classA, _ := bucket.CreateClass("a", nil)
	classB, _ := bucket.CreateClass("b", nil)

	h := bucket.CreatePort(classA, nil)
	defer bucket.DestroyRight(h) //nolint:errcheck

	if _, err := bucket.LookupByName(h, classB); !errors.Is(err, ErrWrongClass) {
		t.Fatalf("lookup wrong class: got %v, want ErrWrongClass", err)
	}
}

func TestLookupByPayload(t *testing.T) {
	tab := NewTable()
	bucket, _ := tab.CreateBucket("addrs")
	class, _ := bucket.CreateClass("address", nil)

	bucket.CreatePort(class, "192.168.1.1")
	h2 := bucket.CreatePort(class, "192.168.1.2")

	obj, err := bucket.LookupByPayload(class, func(p any) bool { return p == "192.168.1.2" })
	if err != nil {
		t.Fatalf("lookup by payload: %v", err)
	}
	if obj.Payload() != "192.168.1.2" {
		t.Fatalf("payload = %v", obj.Payload())
	}
	bucket.Deref(obj)
	bucket.DestroyRight(h2) //nolint:errcheck
}

func TestStaleHandleAfterReuse(t *testing.T) {
	tab := NewTable()
	bucket, _ := tab.CreateBucket("sockets")
	class, _ := bucket.CreateClass("socket-user", nil)

	h1 := bucket.CreatePort(class, 1)
	if err := bucket.DestroyRight(h1); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	bucket.CreatePort(class, 2)

	// h1 must not resolve to anything now, even though a new object has
	// been created in the same bucket and class since it was destroyed.
	if _, err := bucket.LookupByName(h1, class); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale handle resolved: %v", err)
	}
}

func TestDuplicateBucketAndClass(t *testing.T) {
	tab := NewTable()
	if _, err := tab.CreateBucket("dup"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := tab.CreateBucket("dup"); !errors.Is(err, ErrBucketExists) {
		t.Fatalf("duplicate bucket: got %v, want ErrBucketExists", err)
	}

	b := tab.Bucket("dup")
	if _, err := b.CreateClass("c", nil); err != nil {
		t.Fatalf("first class: %v", err)
	}
	if _, err := b.CreateClass("c", nil); !errors.Is(err, ErrClassExists) {
		t.Fatalf("duplicate class: got %v, want ErrClassExists", err)
	}
}

func TestLen(t *testing.T) {
	tab := NewTable()
	b, err := tab.CreateBucket("sockets")
	if err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	class, err := b.CreateClass("c", nil)
	if err != nil {
		t.Fatalf("create class: %v", err)
	}

	if got := b.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}

	h1 := b.CreatePort(class, 1)
	b.CreatePort(class, 2)
	if got := b.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	if err := b.DestroyRight(h1); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if got := b.Len(); got != 1 {
		t.Fatalf("Len() after destroy = %d, want 1", got)
	}
}

func TestSnapshot(t *testing.T) {
	tab := NewTable()
	b, err := tab.CreateBucket("sockets")
	if err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	userClass, err := b.CreateClass("user-view", nil)
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	addrClass, err := b.CreateClass("address", nil)
	if err != nil {
		t.Fatalf("create class: %v", err)
	}

	b.CreatePort(userClass, "sock-a")
	b.CreatePort(userClass, "sock-b")
	b.CreatePort(addrClass, "addr-a")

	users := b.Snapshot(userClass)
	if len(users) != 2 {
		t.Fatalf("len(Snapshot(userClass)) = %d, want 2", len(users))
	}

	all := b.Snapshot(nil)
	if len(all) != 3 {
		t.Fatalf("len(Snapshot(nil)) = %d, want 3", len(all))
	}
}
