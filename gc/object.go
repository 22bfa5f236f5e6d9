package gc

import "unsafe"

// Ref is a reference to a managed object: the address of its header inside
// one of the heap's regions. The zero Ref is the null reference.
//
// A Ref whose low three bits are not all zero is a tagged immediate. Tagged
// values flow through reference slots like object pointers but are ignored
// by every collector pass.
type Ref uintptr

// Tag packs an immediate value into a Ref. The value is truncated to the
// pointer width minus three bits.
func Tag(v uintptr) Ref {
	return Ref(v<<3 | 1)
}

// IsTagged reports whether r holds a tagged immediate rather than an object
// reference.
func (r Ref) IsTagged() bool {
	return r&7 != 0
}

// TagValue unpacks the immediate stored by Tag.
func (r Ref) TagValue() uintptr {
	return uintptr(r) >> 3
}

// Payload returns a pointer to the object's trailing storage, just past the
// header. It is only valid until the next collection point.
func (r Ref) Payload() unsafe.Pointer {
	return unsafe.Pointer(uintptr(r) + headerSize)
}

// SlotAt returns the reference slot at byte offset off into obj's payload.
// The offset must be a multiple of the pointer size.
func SlotAt(obj Ref, off uintptr) *Ref {
	return (*Ref)(unsafe.Add(obj.Payload(), off))
}

// Space identifies the heap region an object lives in.
type Space uint8

const (
	EdenSpace Space = iota
	SurvivorSpace
	TenuredSpace
	LargeObjectSpace
	// RootSpace marks storage owned by the root set: handle group slots and
	// tracked Root records. No object header ever carries it; it exists so
	// diagnostics can name the region.
	RootSpace
)

// String returns a human-readable region name, for debugging.
func (s Space) String() string {
	switch s {
	case EdenSpace:
		return "eden"
	case SurvivorSpace:
		return "survivor"
	case TenuredSpace:
		return "tenured"
	case LargeObjectSpace:
		return "large"
	case RootSpace:
		return "root"
	default:
		// must never happen
		return "!err"
	}
}

// status is the tri-color mark state of an object.
type status uint8

const (
	notMarked status = iota // white: not reached yet
	marking                 // grey: reached, fields not yet scanned
	marked                  // black: reached and scanned
)

// object is the header placed at the start of every managed allocation.
type object struct {
	// dest is the forwarding pointer while a collection is relocating the
	// object. Between collections it is the object's own address for
	// tenured and large objects (so slot rewrites are identity) and nil
	// after the object has been finalized, which makes it the liveness
	// witness the weak reference machinery checks.
	dest Ref

	// refcount counts references into this object from root-owned slots and
	// from tenured/large objects. Minor collections use it as their root
	// set so they never scan the mature regions.
	refcount uint32

	// size is the total allocation size in bytes, header included. Always a
	// multiple of 8.
	size uint32

	class    ClassID
	space    Space
	status   status
	lifetime uint8 // number of minor collections survived
}

// headerSize is the offset of an object's payload from its Ref.
const headerSize = (unsafe.Sizeof(object{}) + 7) &^ 7

func (r Ref) header() *object {
	return (*object)(unsafe.Pointer(r))
}

// ClassID names an object class registered with RegisterClass.
type ClassID uint16

// Visitor receives an object's outgoing reference slots, one call per slot.
// Weak visits never keep the referent alive.
type Visitor interface {
	Visit(slot *Ref)
	VisitWeak(slot *Ref)
}

// Class describes the collector-relevant behavior of one kind of object.
// Fields, Finalize and WeakCollected run during collection phases (Finalize
// also from Close) and must not allocate, write reference slots, or trigger
// a collection.
type Class struct {
	Name string

	// Fields hands every outgoing reference slot of obj to the visitor,
	// tagged strong or weak. Leave nil for objects without reference slots.
	Fields func(h *Heap, obj Ref, v Visitor)

	// Finalize runs exactly once, just before the object's storage is
	// reclaimed or the heap is closed. Optional.
	Finalize func(h *Heap, obj Ref)

	// WeakCollected is invoked for each weak slot of obj whose referent was
	// reclaimed, after the collector nulled the slot. Optional.
	WeakCollected func(h *Heap, obj Ref, slot *Ref)

	// Hash and Equal override the identity semantics used by Heap.Hash and
	// Heap.Equal. Optional; the default is reference identity.
	Hash  func(h *Heap, obj Ref) uint64
	Equal func(h *Heap, obj, other Ref) bool
}

// RegisterClass adds a class to the heap's class table. All classes must be
// registered before objects of that class are allocated.
func (h *Heap) RegisterClass(c Class) ClassID {
	if len(h.classes) > maxClasses {
		panic("gc: class table overflow")
	}
	h.classes = append(h.classes, c)
	return ClassID(len(h.classes) - 1)
}

const maxClasses = 1<<16 - 1

// SpaceOf returns the region obj currently lives in.
func (h *Heap) SpaceOf(obj Ref) Space {
	return obj.header().space
}

func (h *Heap) class(obj Ref) *Class {
	return &h.classes[obj.header().class]
}

func (h *Heap) iterateFields(obj Ref, v Visitor) {
	c := h.class(obj)
	if c.Fields != nil {
		c.Fields(h, obj, v)
	}
}

// Hash returns obj's hash code: the class's Hash callback if it has one,
// reference identity otherwise. Identity hashes are only stable between
// collection points, since objects move.
func (h *Heap) Hash(obj Ref) uint64 {
	if obj == 0 || obj.IsTagged() {
		return uint64(obj)
	}
	if fn := h.class(obj).Hash; fn != nil {
		return fn(h, obj)
	}
	return uint64(obj)
}

// Equal reports whether two references denote equal objects, using the
// class's Equal callback when the left side has one and reference identity
// otherwise.
func (h *Heap) Equal(obj, other Ref) bool {
	if obj == 0 || obj.IsTagged() || other == 0 || other.IsTagged() {
		return obj == other
	}
	if fn := h.class(obj).Equal; fn != nil {
		return fn(h, obj, other)
	}
	return obj == other
}

// memzero clears size bytes starting at addr.
func memzero(addr, size uintptr) {
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	for i := range b {
		b[i] = 0
	}
}

// memmove copies size bytes from src to dst, handling overlap.
func memmove(dst, src, size uintptr) {
	copy(unsafe.Slice((*byte)(unsafe.Pointer(dst)), size), unsafe.Slice((*byte)(unsafe.Pointer(src)), size))
}

func align8(n uintptr) uintptr {
	return (n + 7) &^ 7
}
