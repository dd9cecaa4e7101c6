// Package captab implements the translator's capability table: a typed,
// reference-counted object table organized into buckets and classes, with
// lookup by payload identifier (for O(1) demux) or by handle name.
//
// The underlying transport has no kernel-enforced port names, so a
// [Handle] carries the object's id and a generation counter; ids are
// never reused, so a stale handle (from a destroyed object) never
// aliases an object created after it.
package captab

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Sentinel errors for Table operations.
var (
	// ErrNotFound indicates no object matches the given handle or payload.
	ErrNotFound = errors.New("capability not found")

	// ErrWrongClass indicates a lookup found an object but its class did
	// not match the caller's expectation.
	ErrWrongClass = errors.New("capability class mismatch")

	// ErrClassExists indicates CreateClass was called twice for the same tag.
	ErrClassExists = errors.New("class already registered")

	// ErrBucketExists indicates CreateBucket was called twice for the same name.
	ErrBucketExists = errors.New("bucket already registered")
)

// Class is a type tag for objects in a bucket. Cleanup runs exactly once,
// after the last reference to an object of this class is dropped.
type Class struct {
	name    string
	cleanup func(payload any)
}

// Bucket is a set of handles multiplexed by a single message-serving loop.
// Each bucket owns its own classes and its own handle-generation counter.
type Bucket struct {
	name string

	mu      sync.RWMutex
	classes map[string]*Class
	objects map[uint64]*Object
	nextID  atomic.Uint64
}

// Object is one capability-table entry: a class tag, a handle, a payload
// identifier for O(1) demux lookup, and a reference count.
type Object struct {
	bucket  *Bucket
	class   *Class
	id      uint64
	gen     uint64
	payload any
	refs    atomic.Int32
	once    sync.Once
}

// Handle is the translator-level stand-in for a Mach send right: an
// opaque reference to an [Object] that can be copied freely and checked
// for staleness via its generation counter.
type Handle struct {
	id  uint64
	gen uint64
}

// ID and Gen expose a Handle's wire-identity for RPC marshaling; callers
// otherwise treat Handle as opaque. HandleFromParts is their inverse,
// reconstructing a Handle decoded off the wire.
func (h Handle) ID() uint64  { return h.id }
func (h Handle) Gen() uint64 { return h.gen }

// HandleFromParts reconstructs a Handle from its wire-decoded id/gen
// pair. The resulting Handle is only meaningful against the Table that
// produced the original id/gen values.
func HandleFromParts(id, gen uint64) Handle {
	return Handle{id: id, gen: gen}
}

// Table owns a set of named buckets.
type Table struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
}

// NewTable creates an empty capability table.
func NewTable() *Table {
	return &Table{buckets: make(map[string]*Bucket)}
}

// CreateBucket registers a new, empty bucket under name.
func (t *Table) CreateBucket(name string) (*Bucket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.buckets[name]; exists {
		return nil, fmt.Errorf("create bucket %q: %w", name, ErrBucketExists)
	}

	b := &Bucket{
		name:    name,
		classes: make(map[string]*Class),
		objects: make(map[uint64]*Object),
	}
	t.buckets[name] = b
	return b, nil
}

// Bucket returns the named bucket, or nil if it does not exist.
func (t *Table) Bucket(name string) *Bucket {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buckets[name]
}

// CreateClass registers a class tag in the bucket with a cleanup callback
// invoked exactly once, after an object's last reference is dropped.
func (b *Bucket) CreateClass(name string, cleanup func(payload any)) (*Class, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.classes[name]; exists {
		return nil, fmt.Errorf("create class %q: %w", name, ErrClassExists)
	}

	c := &Class{name: name, cleanup: cleanup}
	b.classes[name] = c
	return c, nil
}

// CreatePort allocates a new object of the given class with one
// outstanding reference and returns a [Handle] to it.
func (b *Bucket) CreatePort(class *Class, payload any) Handle {
	id := b.nextID.Add(1)

	obj := &Object{
		bucket:  b,
		class:   class,
		id:      id,
		gen:     id,
		payload: payload,
	}
	obj.refs.Store(1)

	b.mu.Lock()
	b.objects[id] = obj
	b.mu.Unlock()

	return Handle{id: id, gen: obj.gen}
}

// GetSendRight returns a fresh [Handle] for an already-held object,
// incrementing its reference count. Callers must [Bucket.Deref] the
// returned handle when done.
func (b *Bucket) GetSendRight(obj *Object) Handle {
	obj.refs.Add(1)
	return Handle{id: obj.id, gen: obj.gen}
}

// LookupByName resolves h to its [Object], incrementing the reference
// count (a borrowed reference the caller must balance with [Bucket.Deref]).
// expectedClass may be nil to skip the class check.
func (b *Bucket) LookupByName(h Handle, expectedClass *Class) (*Object, error) {
	b.mu.RLock()
	obj, ok := b.objects[h.id]
	b.mu.RUnlock()

	if !ok || obj.gen != h.gen {
		return nil, fmt.Errorf("lookup handle %d: %w", h.id, ErrNotFound)
	}
	if expectedClass != nil && obj.class != expectedClass {
		return nil, fmt.Errorf("lookup handle %d: %w", h.id, ErrWrongClass)
	}

	obj.refs.Add(1)
	return obj, nil
}

// LookupByPayload scans the bucket for an object whose payload equals the
// given value under eq, restricted to expectedClass if non-nil. Intended
// for small buckets where payload identity (not a handle) selects the
// object, matching the translator's "protected payload" dispatch bit.
func (b *Bucket) LookupByPayload(expectedClass *Class, eq func(payload any) bool) (*Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, obj := range b.objects {
		if expectedClass != nil && obj.class != expectedClass {
			continue
		}
		if eq(obj.payload) {
			obj.refs.Add(1)
			return obj, nil
		}
	}
	return nil, fmt.Errorf("lookup by payload: %w", ErrNotFound)
}

// Ref increments obj's reference count.
func (b *Bucket) Ref(obj *Object) {
	obj.refs.Add(1)
}

// Deref drops one reference from obj. When the count reaches zero, the
// class cleanup runs exactly once and the object is removed from the
// bucket.
func (b *Bucket) Deref(obj *Object) {
	if obj.refs.Add(-1) > 0 {
		return
	}

	obj.once.Do(func() {
		if obj.class != nil && obj.class.cleanup != nil {
			obj.class.cleanup(obj.payload)
		}
		b.mu.Lock()
		delete(b.objects, obj.id)
		b.mu.Unlock()
	})
}

// DestroyRight drops one reference from the object resolved by h. It is
// the RPC-facing counterpart of [Bucket.Deref] for callers that only hold
// a handle, not the resolved object.
func (b *Bucket) DestroyRight(h Handle) error {
	b.mu.RLock()
	obj, ok := b.objects[h.id]
	b.mu.RUnlock()

	if !ok || obj.gen != h.gen {
		return fmt.Errorf("destroy handle %d: %w", h.id, ErrNotFound)
	}

	b.Deref(obj)
	return nil
}

// Len reports the number of live objects in the bucket, for MIB-style
// introspection and the captab_objects gauge.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Snapshot returns the payloads of every live object in the bucket whose
// class is expectedClass (or every object, if expectedClass is nil),
// without taking a reference on any of them. Intended for read-only
// introspection endpoints, not for handles a caller will later Deref.
func (b *Bucket) Snapshot(expectedClass *Class) []any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]any, 0, len(b.objects))
	for _, obj := range b.objects {
		if expectedClass != nil && obj.class != expectedClass {
			continue
		}
		out = append(out, obj.payload)
	}
	return out
}

// Payload returns the object's payload value.
func (o *Object) Payload() any { return o.payload }

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }
