package gc

import "testing"

func TestMinorGCOnEmptyHeap(t *testing.T) {
	h := newTestHeap(t)
	h.MinorGC()
	if !h.eden.empty() || !h.survivorFrom.empty() || !h.tenured.empty() {
		t.Error("minor collection on an empty heap touched a region")
	}
	if h.frees != 0 {
		t.Errorf("minor collection on an empty heap freed %d objects", h.frees)
	}
}

func TestMinorGCMovesSurvivorsToSurvivorSpace(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	hd := mustHandle(t, h, mustAllocate(t, h, node, payloadSizeFor(64)))
	before := hd.Get()

	h.MinorGC()

	after := hd.Get()
	if after == before {
		t.Error("object did not move out of eden")
	}
	if h.SpaceOf(after) != SurvivorSpace {
		t.Errorf("survivor in %v, want survivor", h.SpaceOf(after))
	}
	if !spaceContains(h.survivorFrom, after) {
		t.Error("object is not inside the live survivor half")
	}
	if after.header().lifetime != 1 {
		t.Errorf("lifetime = %d after one collection, want 1", after.header().lifetime)
	}
	if hooks.finalized != 0 {
		t.Errorf("%d finalizers ran for a reachable object", hooks.finalized)
	}
}

func TestTenuringThreshold(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	hd := mustHandle(t, h, mustAllocate(t, h, node, payloadSizeFor(64)))

	// Surviving exactly the threshold number of collections keeps the
	// object in the survivor space.
	for i := 0; i < int(h.tenuredThreshold); i++ {
		h.MinorGC()
	}
	obj := hd.Get()
	if h.SpaceOf(obj) != SurvivorSpace {
		t.Fatalf("object in %v after %d collections, want survivor", h.SpaceOf(obj), h.tenuredThreshold)
	}
	if obj.header().lifetime != h.tenuredThreshold {
		t.Fatalf("lifetime = %d, want %d", obj.header().lifetime, h.tenuredThreshold)
	}

	// The next collection promotes.
	h.MinorGC()
	obj = hd.Get()
	if h.SpaceOf(obj) != TenuredSpace {
		t.Fatalf("object in %v after promotion, want tenured", h.SpaceOf(obj))
	}
	if !spaceContains(h.tenured, obj) {
		t.Error("promoted object is not inside the tenured region")
	}

	// Tenured objects stay put across further minor collections.
	h.MinorGC()
	if hd.Get() != obj {
		t.Error("tenured object moved during a minor collection")
	}
}

func TestUnreachableObjectsCollected(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	for i := 0; i < 1000; i++ {
		mustAllocate(t, h, node, payloadSizeFor(64))
	}
	h.MinorGC()

	if !h.eden.empty() {
		t.Error("eden not empty after collecting unreachable objects")
	}
	if !h.survivorFrom.empty() {
		t.Error("unreachable objects were copied to the survivor space")
	}
	if hooks.finalized != 1000 {
		t.Errorf("%d finalizers ran, want 1000", hooks.finalized)
	}
}

func TestLargeObjectCollected(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	obj := mustAllocate(t, h, node, payloadSizeFor(8192))
	if h.SpaceOf(obj) != LargeObjectSpace {
		t.Fatalf("8 KiB object in %v, want large", h.SpaceOf(obj))
	}
	if h.largeHead.next == &h.largeHead {
		t.Fatal("large-object list is empty after a large allocation")
	}

	// Large objects are minor-collection roots and survive it.
	h.MinorGC()
	if hooks.finalized != 0 {
		t.Fatal("minor collection reclaimed a large object")
	}

	h.MajorGC()
	if h.largeHead.next != &h.largeHead {
		t.Error("large-object list not empty after a major collection")
	}
	if hooks.finalized != 1 {
		t.Errorf("%d finalizers ran, want 1", hooks.finalized)
	}
}

func TestWeakReferenceNotification(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	a := mustHandle(t, h, mustAllocate(t, h, node, nodePayload))
	b := mustAllocate(t, h, node, nodePayload)
	h.WriteWeak(a.Get(), SlotAt(a.Get(), 2*wordSize), b)

	h.MajorGC()

	if got := *SlotAt(a.Get(), 2*wordSize); got != 0 {
		t.Errorf("weak slot = %#x after referent died, want nil", got)
	}
	if hooks.weakNotified != 1 {
		t.Errorf("%d weak notifications, want 1", hooks.weakNotified)
	}
	if hooks.finalized != 1 {
		t.Errorf("%d finalizers ran, want 1", hooks.finalized)
	}

	// No further notification on later collections.
	h.MajorGC()
	if hooks.weakNotified != 1 {
		t.Errorf("weak notification fired again, count %d", hooks.weakNotified)
	}
}

func TestWeakReferenceInMinorGC(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	// A weak reference from a young owner is nulled by a minor collection
	// when the referent dies.
	a := mustHandle(t, h, mustAllocate(t, h, node, nodePayload))
	b := mustAllocate(t, h, node, nodePayload)
	h.WriteWeak(a.Get(), SlotAt(a.Get(), 2*wordSize), b)

	h.MinorGC()

	if got := *SlotAt(a.Get(), 2*wordSize); got != 0 {
		t.Errorf("weak slot = %#x after minor collection, want nil", got)
	}
	if hooks.weakNotified != 1 {
		t.Errorf("%d weak notifications, want 1", hooks.weakNotified)
	}
}

func TestWeakReferenceFollowsSurvivor(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	a := mustHandle(t, h, mustAllocate(t, h, node, nodePayload))
	bh := mustHandle(t, h, mustAllocate(t, h, node, nodePayload))
	h.WriteWeak(a.Get(), SlotAt(a.Get(), 2*wordSize), bh.Get())

	h.MinorGC()

	// The referent survived and moved; the weak slot follows it.
	if got := *SlotAt(a.Get(), 2*wordSize); got != bh.Get() {
		t.Errorf("weak slot = %#x, want the moved referent %#x", got, bh.Get())
	}
	if hooks.weakNotified != 0 {
		t.Errorf("%d weak notifications for a live referent", hooks.weakNotified)
	}
}

func TestWriteBarrierRefcountRoundTrip(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	x := mustHandle(t, h, mustAllocate(t, h, node, nodePayload))
	y := mustHandle(t, h, mustAllocate(t, h, node, nodePayload))

	probe := mustHandle(t, h, x.Get())
	before := x.Get().header().refcount

	probe.Set(y.Get())
	probe.Set(x.Get())

	if got := x.Get().header().refcount; got != before {
		t.Errorf("refcount = %d after a write round-trip, want %d", got, before)
	}
	if got := y.Get().header().refcount; got != 1 {
		t.Errorf("refcount of y = %d, want 1", got)
	}
}

func TestMatureToYoungReference(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	// Promote an object, then point it at a young one. The refcount from
	// the mature region must keep the young object alive through minor
	// collections that never scan tenured.
	owner := mustHandle(t, h, mustAllocate(t, h, node, nodePayload))
	for i := 0; i <= int(h.tenuredThreshold); i++ {
		h.MinorGC()
	}
	if h.SpaceOf(owner.Get()) != TenuredSpace {
		t.Fatal("owner was not promoted")
	}

	young := mustAllocate(t, h, node, nodePayload)
	h.Write(owner.Get(), SlotAt(owner.Get(), 0), young)
	if young.header().refcount != 1 {
		t.Fatalf("refcount = %d after a mature write, want 1", young.header().refcount)
	}

	h.MinorGC()
	moved := *SlotAt(owner.Get(), 0)
	if moved == 0 || h.SpaceOf(moved) != SurvivorSpace {
		t.Fatal("young target did not survive via the mature refcount")
	}
	if hooks.finalized != 0 {
		t.Fatal("young target was reclaimed while referenced")
	}

	// Dropping the reference surrenders the refcount and the target dies.
	h.Write(owner.Get(), SlotAt(owner.Get(), 0), 0)
	h.MinorGC()
	if hooks.finalized != 1 {
		t.Errorf("%d finalizers ran after dropping the reference, want 1", hooks.finalized)
	}
}

func TestMajorGCCollectsMatureCycle(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	a := mustHandle(t, h, mustAllocate(t, h, node, nodePayload))
	b := mustHandle(t, h, mustAllocate(t, h, node, nodePayload))
	for i := 0; i <= int(h.tenuredThreshold); i++ {
		h.MinorGC()
	}
	if h.SpaceOf(a.Get()) != TenuredSpace || h.SpaceOf(b.Get()) != TenuredSpace {
		t.Fatal("objects were not promoted")
	}

	// Build the cycle, then drop the roots.
	h.Write(a.Get(), SlotAt(a.Get(), 0), b.Get())
	h.Write(b.Get(), SlotAt(b.Get(), 0), a.Get())
	a.Release()
	b.Release()

	// Minor collections cannot touch the cycle: both members hold a
	// refcount from the other.
	h.MinorGC()
	if hooks.finalized != 0 {
		t.Fatal("minor collection reclaimed a tenured object")
	}

	h.MajorGC()
	if hooks.finalized != 2 {
		t.Errorf("%d finalizers ran for the mature cycle, want 2", hooks.finalized)
	}
}

func TestMajorGCCompactsTenured(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	keep1 := mustHandle(t, h, mustAllocate(t, h, node, payloadSizeFor(64)))
	drop := mustHandle(t, h, mustAllocate(t, h, node, payloadSizeFor(64)))
	keep2 := mustHandle(t, h, mustAllocate(t, h, node, payloadSizeFor(64)))
	for i := 0; i <= int(h.tenuredThreshold); i++ {
		h.MinorGC()
	}
	if h.SpaceOf(keep1.Get()) != TenuredSpace || h.SpaceOf(drop.Get()) != TenuredSpace || h.SpaceOf(keep2.Get()) != TenuredSpace {
		t.Fatal("objects were not promoted")
	}

	drop.Release()
	h.MajorGC()

	// Compaction: tenured holds exactly the two survivors, back to back.
	if got := h.tenured.top - spaceHeaderSize; got != 128 {
		t.Errorf("tenured holds %d bytes after compaction, want 128", got)
	}
	if hooks.finalized != 1 {
		t.Errorf("%d finalizers ran, want 1", hooks.finalized)
	}
	if h.SpaceOf(keep1.Get()) != TenuredSpace || h.SpaceOf(keep2.Get()) != TenuredSpace {
		t.Error("survivors left the tenured region")
	}
}

func TestRootTracking(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	var slot Ref
	root := &Root{Fields: func(v Visitor) { v.Visit(&slot) }}
	h.Track(root)

	obj := mustAllocate(t, h, node, nodePayload)
	h.WriteRoot(&slot, obj)
	if obj.header().refcount != 1 {
		t.Fatalf("refcount = %d after a root write, want 1", obj.header().refcount)
	}

	h.MinorGC()
	if slot == 0 || h.SpaceOf(slot) != SurvivorSpace {
		t.Fatal("root slot was not rewritten to the moved object")
	}
	if hooks.finalized != 0 {
		t.Fatal("rooted object was reclaimed")
	}

	// Major collections trace through tracked roots too.
	h.MajorGC()
	if hooks.finalized != 0 {
		t.Fatal("rooted object was reclaimed by a major collection")
	}

	h.Untrack(root)
	h.MinorGC()
	if hooks.finalized != 1 {
		t.Errorf("%d finalizers ran after untracking, want 1", hooks.finalized)
	}

	expectPanic(t, "double untrack", func() { h.Untrack(root) })
}

func TestRootWeakSlot(t *testing.T) {
	h := newTestHeap(t)
	var hooks nodeHooks
	node := registerNodeClass(h, &hooks)

	var weak Ref
	notified := 0
	root := &Root{
		Fields:        func(v Visitor) { v.VisitWeak(&weak) },
		WeakCollected: func(slot *Ref) { notified++ },
	}
	h.Track(root)

	// Weak slots stay out of the refcounted path: a plain store suffices.
	weak = mustAllocate(t, h, node, nodePayload)

	h.MinorGC()
	if weak != 0 {
		t.Errorf("root weak slot = %#x, want nil", weak)
	}
	if notified != 1 {
		t.Errorf("%d root weak notifications, want 1", notified)
	}
	h.Untrack(root)
}
