package gc

import (
	"math"
	"time"
	"unsafe"
)

// Compile-time switches in the style of the rest of the collector: gcDebug
// gates println tracing, gcAsserts gates internal sanity checks. Invariant
// violations that the API contract promises to catch always panic,
// regardless of gcAsserts.
const gcDebug = false
const gcAsserts = true

// largeObjectNode is the list header placed immediately before an oversized
// payload. The heap's largeHead field is the ring sentinel.
type largeObjectNode struct {
	prev, next *largeObjectNode
}

const largeNodeSize = (unsafe.Sizeof(largeObjectNode{}) + 7) &^ 7

func (n *largeObjectNode) object() Ref {
	return Ref(uintptr(unsafe.Pointer(n)) + largeNodeSize)
}

// Heap owns all memory regions, the root set, and the collector state.
// A Heap is not safe for concurrent use; a single mutex around the API is
// sufficient if multiple goroutines must share one.
type Heap struct {
	memorySpaceSize      uintptr
	largeObjectThreshold uintptr
	tenuredThreshold     uint8

	eden         *memorySpace
	survivorFrom *memorySpace
	survivorTo   *memorySpace
	tenured      *memorySpace
	largeHead    largeObjectNode

	rootHead   Root
	handles    *handleGroup
	handleRoot Root

	classes         []Class
	refArrayClass   ClassID
	valueArrayClass ClassID

	noGC            uintptr
	fullGCSuggested bool
	collecting      bool
	closed          bool

	// Allocation and collection counters, see ReadMemStats/ReadGCStats.
	mallocs    uint64
	frees      uint64
	totalAlloc uint64
	minorCount uint64
	majorCount uint64
	lastGC     time.Time
	lastPause  time.Duration
	totalPause time.Duration
}

// New creates a heap from cfg. The zero Config selects the defaults: 1 MiB
// regions, a 4 KiB large-object threshold, and promotion after 16 survived
// minor collections.
func New(cfg Config) (*Heap, error) {
	params, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	h := &Heap{
		memorySpaceSize:      params.memorySpaceSize,
		largeObjectThreshold: params.largeObjectThreshold,
		tenuredThreshold:     params.tenuredThreshold,
	}
	h.largeHead.prev = &h.largeHead
	h.largeHead.next = &h.largeHead
	h.rootHead.prev = &h.rootHead
	h.rootHead.next = &h.rootHead

	spaces := []**memorySpace{&h.eden, &h.survivorFrom, &h.survivorTo, &h.tenured}
	for _, sp := range spaces {
		*sp, err = newMemorySpace(h.memorySpaceSize)
		if err != nil {
			h.destroyRegions()
			return nil, err
		}
	}
	if gcDebug {
		h.eden.fillUnallocated(0xCC)
		h.survivorFrom.fillUnallocated(0xCC)
		h.survivorTo.fillUnallocated(0xCC)
		h.tenured.fillUnallocated(0xCC)
	}

	h.handles, err = newHandleGroup()
	if err != nil {
		h.destroyRegions()
		return nil, err
	}
	h.handleRoot = Root{Fields: h.iterateHandleSlots}
	h.Track(&h.handleRoot)

	h.registerBuiltinClasses()
	return h, nil
}

// iterateHandleSlots presents every allocated handle slot as a strong root
// slot, which is how major collections see through handles.
func (h *Heap) iterateHandleSlots(v Visitor) {
	h.eachHandleSlot(v.Visit)
}

// Close finalizes every remaining live object exactly once and releases all
// regions, large nodes and handle groups. The heap must not be used
// afterwards.
func (h *Heap) Close() {
	if h.collecting {
		panic("gc: closing the heap during a collection")
	}
	if h.closed {
		return
	}
	h.closed = true

	h.collecting = true
	eachObject(h.eden, h.finalizeOnClose)
	eachObject(h.survivorFrom, h.finalizeOnClose)
	eachObject(h.tenured, h.finalizeOnClose)
	for node := h.largeHead.next; node != &h.largeHead; node = node.next {
		h.finalizeOnClose(node.object())
	}
	h.collecting = false

	h.destroyRegions()
	for node, next := h.largeHead.next, (*largeObjectNode)(nil); node != &h.largeHead; node = next {
		next = node.next
		release(unsafe.Pointer(node), largeNodeSize+uintptr(node.object().header().size))
	}
	h.largeHead.prev = &h.largeHead
	h.largeHead.next = &h.largeHead
	for g, next := h.handles, (*handleGroup)(nil); g != nil; g = next {
		next = g.next
		release(unsafe.Pointer(g), handleGroupSize)
	}
	h.handles = nil
}

func (h *Heap) finalizeOnClose(obj Ref) {
	if fin := h.class(obj).Finalize; fin != nil {
		fin(h, obj)
	}
	h.frees++
}

func (h *Heap) destroyRegions() {
	for _, s := range []*memorySpace{h.eden, h.survivorFrom, h.survivorTo, h.tenured} {
		if s != nil {
			s.destroy()
		}
	}
	h.eden, h.survivorFrom, h.survivorTo, h.tenured = nil, nil, nil, nil
}

// Allocate creates an object of class c with payloadSize bytes of trailing
// storage, zero-filled. The total size, header included, is rounded up to a
// multiple of 8; requests past the large-object threshold go to the
// non-moving large space, everything else starts in eden.
//
// Allocation may trigger a collection unless a NoGC scope is active, in
// which case nursery overflow diverts into the survivor space instead.
func (h *Heap) Allocate(c ClassID, payloadSize uintptr) (Ref, error) {
	if h.collecting {
		panic("gc: allocation during a collection")
	}
	if gcAsserts && (h.closed || int(c) >= len(h.classes)) {
		panic("gc: allocation on a closed heap or with an unregistered class")
	}

	size := align8(headerSize + payloadSize)
	if size < payloadSize || size > math.MaxUint32 {
		return 0, &OutOfMemoryError{Size: payloadSize}
	}

	if size > h.largeObjectThreshold {
		return h.allocateLarge(c, size)
	}

	space := EdenSpace
	addr, err := h.eden.allocate(size, false)
	if err != nil {
		return 0, err
	}
	if addr == 0 {
		if h.noGC == 0 {
			if gcDebug {
				println("gc: eden space exhausted")
			}
			if h.fullGCSuggested {
				h.majorGC()
			} else {
				h.minorGC()
			}
			h.fullGCSuggested = false
			addr, err = h.eden.allocate(size, false)
			if err != nil {
				return 0, err
			}
			// Eden was just cleared, so this cannot fail.
			if addr == 0 {
				panic("gc: eden space exhausted right after a collection")
			}
		} else {
			// Collection is suspended: divert into the survivor space, which
			// may grow an overflow chain.
			addr, err = h.survivorFrom.allocate(size, true)
			if err != nil {
				return 0, err
			}
			space = SurvivorSpace
		}
	}

	obj := Ref(addr)
	*obj.header() = object{
		size:  uint32(size),
		class: c,
		space: space,
	}
	memzero(addr+headerSize, size-headerSize)
	h.mallocs++
	h.totalAlloc += uint64(size)
	if gcDebug {
		println("gc: allocated", uint(size), "bytes in", space.String())
	}
	return obj, nil
}

// allocateLarge reserves a dedicated platform block and splices it at the
// tail of the large-object list. Large allocations nudge the collector: the
// first one after a quiet period suggests a major collection, the next one
// runs it.
func (h *Heap) allocateLarge(c ClassID, size uintptr) (Ref, error) {
	if h.noGC == 0 && h.fullGCSuggested {
		h.majorGC()
		h.fullGCSuggested = false
	} else {
		h.fullGCSuggested = true
	}

	ptr, err := reserve(largeNodeSize + size)
	if err != nil {
		return 0, err
	}
	node := (*largeObjectNode)(ptr)
	node.prev = h.largeHead.prev
	node.next = &h.largeHead
	h.largeHead.prev.next = node
	h.largeHead.prev = node

	obj := node.object()
	*obj.header() = object{
		// Large objects never move; dest is the identity forward and stays
		// non-nil for as long as the object is alive.
		dest:  obj,
		size:  uint32(size),
		class: c,
		space: LargeObjectSpace,
	}
	memzero(uintptr(obj)+headerSize, size-headerSize)
	h.mallocs++
	h.totalAlloc += uint64(size)
	return obj, nil
}

// eachObject walks every object in a space chain. The object size is read
// before the callback runs, so the callback may relocate the object.
func eachObject(s *memorySpace, fn func(obj Ref)) {
	for ; s != nil; s = s.next {
		for addr := s.begin(); addr < s.end(); {
			obj := Ref(addr)
			size := uintptr(obj.header().size)
			fn(obj)
			addr += size
		}
	}
}

// eachObjectOriginal is eachObject bounded by each space's originalEnd
// snapshot instead of its current top.
func eachObjectOriginal(s *memorySpace, fn func(obj Ref)) {
	for ; s != nil; s = s.next {
		for addr := s.begin(); addr < s.originalEnd(); {
			obj := Ref(addr)
			size := uintptr(obj.header().size)
			fn(obj)
			addr += size
		}
	}
}

// eachLargeObject walks the large-object ring. The next pointer is loaded
// before the callback runs, so the callback may unlink the node.
func (h *Heap) eachLargeObject(fn func(node *largeObjectNode, obj Ref)) {
	for node, next := h.largeHead.next, (*largeObjectNode)(nil); node != &h.largeHead; node = next {
		next = node.next
		fn(node, node.object())
	}
}
