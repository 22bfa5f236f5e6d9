package gc

import (
	"time"
	"unsafe"
)

// The collection phases communicate through per-slot visitors, one struct
// per pass.

// markingVisitor turns white strong targets grey. Weak visits never
// propagate marks.
type markingVisitor struct{}

func (markingVisitor) Visit(slot *Ref) {
	obj := *slot
	if obj == 0 || obj.IsTagged() {
		return
	}
	if obj.header().status == notMarked {
		obj.header().status = marking
	}
}

func (markingVisitor) VisitWeak(*Ref) {}

// updateVisitor rewrites a slot to its target's forwarding address. For
// targets that do not move the forward is the identity, so the rewrite is
// unconditional.
type updateVisitor struct{}

func (updateVisitor) Visit(slot *Ref) {
	obj := *slot
	if obj == 0 || obj.IsTagged() {
		return
	}
	*slot = obj.header().dest
}

func (v updateVisitor) VisitWeak(slot *Ref) {
	v.Visit(slot)
}

// incRefVisitor and decRefVisitor adjust the refcount contribution of every
// strong slot of an object that enters or leaves the minor-collection root
// set. Weak slots carry no counts.
type incRefVisitor struct{}

func (incRefVisitor) Visit(slot *Ref) {
	obj := *slot
	if obj == 0 || obj.IsTagged() {
		return
	}
	obj.header().refcount++
}

func (incRefVisitor) VisitWeak(*Ref) {}

type decRefVisitor struct{}

func (decRefVisitor) Visit(slot *Ref) {
	obj := *slot
	if obj == 0 || obj.IsTagged() {
		return
	}
	obj.header().refcount--
}

func (decRefVisitor) VisitWeak(*Ref) {}

// weakObjectVisitor nulls weak slots whose referent did not survive this
// collection and reports them to the owner's class. The forwarding pointer
// is the liveness witness: nil after finalize means reclaimed.
type weakObjectVisitor struct {
	h     *Heap
	owner Ref
}

func (weakObjectVisitor) Visit(*Ref) {}

func (v weakObjectVisitor) VisitWeak(slot *Ref) {
	obj := *slot
	if obj == 0 || obj.IsTagged() {
		return
	}
	if obj.header().dest != 0 {
		return
	}
	*slot = 0
	if cb := v.h.class(v.owner).WeakCollected; cb != nil {
		cb(v.h, v.owner, slot)
	}
}

// weakRootVisitor is weakObjectVisitor for slots owned by a tracked Root.
type weakRootVisitor struct {
	root *Root
}

func (weakRootVisitor) Visit(*Ref) {}

func (v weakRootVisitor) VisitWeak(slot *Ref) {
	obj := *slot
	if obj == 0 || obj.IsTagged() {
		return
	}
	if obj.header().dest != 0 {
		return
	}
	*slot = 0
	if v.root.WeakCollected != nil {
		v.root.WeakCollected(slot)
	}
}

// MinorGC runs a minor collection: eden and survivor-from are collected,
// everything else is treated as roots. Fatal inside a NoGC scope.
func (h *Heap) MinorGC() {
	if h.noGC > 0 {
		panic("gc: collection triggered inside a NoGC scope")
	}
	h.minorGC()
}

// MajorGC runs a major collection across all regions. Fatal inside a NoGC
// scope.
func (h *Heap) MajorGC() {
	if h.noGC > 0 {
		panic("gc: collection triggered inside a NoGC scope")
	}
	h.majorGC()
}

func (h *Heap) beginCollection() time.Time {
	if h.collecting {
		panic("gc: reentrant collection")
	}
	h.collecting = true
	return time.Now()
}

func (h *Heap) endCollection(start time.Time) {
	h.lastGC = time.Now()
	h.lastPause = h.lastGC.Sub(start)
	h.totalPause += h.lastPause
	h.collecting = false
}

func (h *Heap) minorGC() {
	start := h.beginCollection()
	if gcDebug {
		println("gc: minor collection")
	}

	// Scan roots. The refcounts capture every reference from the root set
	// and from tenured/large objects, so within the young generation
	// "refcount > 0" is the complete root set.
	h.scanYoungRoots(h.eden)
	h.scanYoungRoots(h.survivorFrom)

	// Mark closure. Sweeping can turn tenured targets grey as well; those
	// are left alone here and bleached again in the update phase.
	for {
		modified := false
		if h.markSpace(h.eden) {
			modified = true
		}
		if h.markSpace(h.survivorFrom) {
			modified = true
		}
		if !modified {
			break
		}
	}

	// Finalize the dead and null their forwarding pointers.
	h.finalizeSpace(h.eden)
	h.finalizeSpace(h.survivorFrom)

	// Promotion allocates into tenured while later phases still need to
	// iterate its pre-promotion contents.
	h.tenured.saveOriginal()

	// Compute forwarding addresses.
	h.edenComputeForwarding()
	h.survivorComputeForwarding()

	// Weak slots: live survivors in the collected regions, then the root
	// set and the mature regions in root mode.
	h.notifyWeakLive(h.eden)
	h.notifyWeakLive(h.survivorFrom)
	h.notifyWeakRoots()
	eachObjectOriginal(h.tenured, func(obj Ref) {
		h.iterateFields(obj, weakObjectVisitor{h: h, owner: obj})
	})
	h.eachLargeObject(func(_ *largeObjectNode, obj Ref) {
		h.iterateFields(obj, weakObjectVisitor{h: h, owner: obj})
	})

	// Rewrite strong references to the forwarding addresses.
	h.updateRootReferences()
	h.updateSpaceReferences(h.eden)
	h.updateSpaceReferences(h.survivorFrom)
	h.minorUpdateTenured()
	h.minorUpdateLarge()

	// Relocate the survivors.
	h.copySpace(h.eden)
	h.copySpace(h.survivorFrom)

	// Reset the collected regions and swap the survivor halves.
	h.eden.clear()
	h.survivorFrom.clear()
	if gcDebug {
		h.eden.fillUnallocated(0xCC)
		h.survivorFrom.fillUnallocated(0xCC)
	}
	h.survivorFrom.trim(1)
	h.survivorFrom, h.survivorTo = h.survivorTo, h.survivorFrom

	h.minorCount++
	h.endCollection(start)
	if gcDebug {
		println("gc: minor collection finished")
		h.dumpSpaces()
	}
}

func (h *Heap) majorGC() {
	start := h.beginCollection()
	if gcDebug {
		println("gc: major collection")
	}

	// Scan the true roots. Refcounts play no part here, which is what lets
	// mature-only cycles collect.
	h.eachRoot(func(r *Root) {
		if r.Fields != nil {
			r.Fields(markingVisitor{})
		}
	})

	// Mark closure across all four regions.
	for {
		modified := false
		if h.markSpace(h.eden) {
			modified = true
		}
		if h.markSpace(h.survivorFrom) {
			modified = true
		}
		if h.markSpace(h.tenured) {
			modified = true
		}
		if h.markLarge() {
			modified = true
		}
		if !modified {
			break
		}
	}

	// Finalize the dead everywhere. Dead mature objects also surrender the
	// refcount units their strong slots hold, so young targets become
	// collectable by the next minor collection.
	h.finalizeSpace(h.eden)
	h.finalizeSpace(h.survivorFrom)
	h.finalizeSpace(h.tenured)
	h.eachLargeObject(func(_ *largeObjectNode, obj Ref) {
		hd := obj.header()
		if hd.status == marked {
			return
		}
		if fin := h.class(obj).Finalize; fin != nil {
			fin(h, obj)
		}
		hd.dest = 0
		h.frees++
		h.iterateFields(obj, decRefVisitor{})
	})

	// Compaction re-allocates tenured from the bottom; the snapshot bounds
	// every later walk over its old contents.
	h.tenured.saveOriginal()
	h.tenured.clear()

	// Compute forwarding addresses. Tenured first, so promoted survivors
	// land behind the compacted objects; large objects keep dest == self.
	h.edenComputeForwarding()
	h.tenuredComputeForwarding()
	h.survivorComputeForwarding()

	// Weak slots, live mode everywhere and root mode for the root set.
	h.notifyWeakLive(h.eden)
	h.notifyWeakLive(h.survivorFrom)
	eachObjectOriginal(h.tenured, func(obj Ref) {
		if obj.header().status == marked {
			h.iterateFields(obj, weakObjectVisitor{h: h, owner: obj})
		}
	})
	h.eachLargeObject(func(_ *largeObjectNode, obj Ref) {
		if obj.header().status == marked {
			h.iterateFields(obj, weakObjectVisitor{h: h, owner: obj})
		}
	})
	h.notifyWeakRoots()

	// Rewrite strong references.
	h.updateRootReferences()
	h.updateSpaceReferences(h.eden)
	h.updateSpaceReferences(h.survivorFrom)
	h.majorUpdateTenured()
	h.majorUpdateLarge()

	// Relocate: copy out of eden and survivor-from, slide tenured downward
	// (forwarding is monotone, so lower addresses are always safe), release
	// dead large nodes.
	h.copySpace(h.eden)
	h.moveTenured()
	h.copySpace(h.survivorFrom)
	h.sweepLarge()

	// Reset regions, drop overflow slack, swap the survivor halves.
	h.eden.clear()
	h.survivorFrom.clear()
	if gcDebug {
		h.eden.fillUnallocated(0xCC)
		h.survivorFrom.fillUnallocated(0xCC)
		h.tenured.fillUnallocated(0xCC)
	}
	h.survivorFrom.trim(1)
	h.tenured.trim(1)
	h.survivorFrom, h.survivorTo = h.survivorTo, h.survivorFrom

	h.majorCount++
	h.endCollection(start)
	if gcDebug {
		println("gc: major collection finished")
		h.dumpSpaces()
	}
}

// scanYoungRoots greys every object in a collected region that the root set
// or the mature regions reference.
func (h *Heap) scanYoungRoots(s *memorySpace) {
	eachObject(s, func(obj Ref) {
		if obj.header().refcount > 0 {
			obj.header().status = marking
		}
	})
}

// markSpace scans every grey object in the space, greying its strong
// targets and blackening the object. Reports whether anything was scanned,
// so the caller can sweep to a fixed point.
func (h *Heap) markSpace(s *memorySpace) bool {
	modified := false
	eachObject(s, func(obj Ref) {
		if obj.header().status == marking {
			modified = true
			h.iterateFields(obj, markingVisitor{})
			obj.header().status = marked
		}
	})
	return modified
}

func (h *Heap) markLarge() bool {
	modified := false
	h.eachLargeObject(func(_ *largeObjectNode, obj Ref) {
		if obj.header().status == marking {
			modified = true
			h.iterateFields(obj, markingVisitor{})
			obj.header().status = marked
		}
	})
	return modified
}

// finalizeSpace runs destructors for everything unmarked and nulls their
// forwarding pointers, turning dest into the liveness witness for the rest
// of the collection.
func (h *Heap) finalizeSpace(s *memorySpace) {
	eachObject(s, func(obj Ref) {
		hd := obj.header()
		if hd.status == marked {
			return
		}
		if fin := h.class(obj).Finalize; fin != nil {
			fin(h, obj)
		}
		hd.dest = 0
		h.frees++
		if gcDebug {
			println("gc: reclaim", uint(uintptr(obj)), "in", hd.space.String())
		}
	})
}

// edenComputeForwarding reserves a survivor-to target for every surviving
// eden object.
func (h *Heap) edenComputeForwarding() {
	eachObject(h.eden, func(obj Ref) {
		hd := obj.header()
		if hd.status != marked {
			return
		}
		addr, err := h.survivorTo.allocate(uintptr(hd.size), true)
		if err != nil {
			panic(err)
		}
		hd.dest = Ref(addr)
		hd.space = SurvivorSpace
		hd.lifetime++
	})
}

// survivorComputeForwarding ages every surviving survivor-from object and
// either promotes it or reserves a survivor-to target.
func (h *Heap) survivorComputeForwarding() {
	eachObject(h.survivorFrom, func(obj Ref) {
		hd := obj.header()
		if hd.status != marked {
			return
		}
		hd.lifetime++
		if hd.lifetime > h.tenuredThreshold {
			h.promote(obj)
			return
		}
		addr, err := h.survivorTo.allocate(uintptr(hd.size), true)
		if err != nil {
			panic(err)
		}
		hd.dest = Ref(addr)
	})
}

// promote reserves a tenured target for obj. A full tenured region grows an
// overflow space and schedules a major collection to compact it away. The
// promoted object becomes a minor-collection root, so its strong targets
// gain a refcount unit each.
func (h *Heap) promote(obj Ref) {
	hd := obj.header()
	size := uintptr(hd.size)
	addr, err := h.tenured.allocate(size, false)
	if err != nil {
		panic(err)
	}
	if addr == 0 {
		h.fullGCSuggested = true
		addr, err = h.tenured.allocate(size, true)
		if err != nil {
			panic(err)
		}
	}
	hd.dest = Ref(addr)
	hd.space = TenuredSpace
	h.iterateFields(obj, incRefVisitor{})
	if gcDebug {
		println("gc: promote", uint(uintptr(obj)), "to", uint(addr))
	}
}

// tenuredComputeForwarding compacts: every marked object re-allocates into
// the freshly cleared region, in address order, so forwarding is monotone.
// Dead tenured objects surrender their outgoing strong refcounts.
func (h *Heap) tenuredComputeForwarding() {
	eachObjectOriginal(h.tenured, func(obj Ref) {
		hd := obj.header()
		if hd.status != marked {
			h.iterateFields(obj, decRefVisitor{})
			return
		}
		addr, err := h.tenured.allocate(uintptr(hd.size), true)
		if err != nil {
			panic(err)
		}
		hd.dest = Ref(addr)
	})
}

// notifyWeakLive processes weak slots of the marked objects in a collected
// region.
func (h *Heap) notifyWeakLive(s *memorySpace) {
	eachObject(s, func(obj Ref) {
		if obj.header().status == marked {
			h.iterateFields(obj, weakObjectVisitor{h: h, owner: obj})
		}
	})
}

// notifyWeakRoots processes weak slots owned by tracked roots, regardless
// of any mark state.
func (h *Heap) notifyWeakRoots() {
	h.eachRoot(func(r *Root) {
		if r.Fields != nil {
			r.Fields(weakRootVisitor{root: r})
		}
	})
}

func (h *Heap) updateRootReferences() {
	h.eachRoot(func(r *Root) {
		if r.Fields != nil {
			r.Fields(updateVisitor{})
		}
	})
}

func (h *Heap) updateSpaceReferences(s *memorySpace) {
	eachObject(s, func(obj Ref) {
		if obj.header().status == marked {
			h.iterateFields(obj, updateVisitor{})
		}
	})
}

// minorUpdateTenured rewrites every tenured object's slots and bleaches the
// marks the closure may have left there. Minor collections never reclaim
// tenured objects, so no liveness check is needed; the walk stops at the
// snapshot so promotion targets reserved behind it are never read.
func (h *Heap) minorUpdateTenured() {
	eachObjectOriginal(h.tenured, func(obj Ref) {
		obj.header().status = notMarked
		h.iterateFields(obj, updateVisitor{})
	})
}

func (h *Heap) minorUpdateLarge() {
	h.eachLargeObject(func(_ *largeObjectNode, obj Ref) {
		obj.header().status = notMarked
		h.iterateFields(obj, updateVisitor{})
	})
}

// majorUpdateTenured rewrites the slots of surviving tenured objects. Marks
// are cleared later, when the objects slide into place.
func (h *Heap) majorUpdateTenured() {
	eachObjectOriginal(h.tenured, func(obj Ref) {
		if obj.header().status == marked {
			h.iterateFields(obj, updateVisitor{})
		}
	})
}

func (h *Heap) majorUpdateLarge() {
	h.eachLargeObject(func(_ *largeObjectNode, obj Ref) {
		if obj.header().status == marked {
			h.iterateFields(obj, updateVisitor{})
		}
	})
}

// copySpace relocates every marked object to its forwarding address. The
// targets live in a different region, so plain copies suffice.
func (h *Heap) copySpace(s *memorySpace) {
	eachObject(s, func(obj Ref) {
		hd := obj.header()
		if hd.status != marked {
			return
		}
		hd.status = notMarked
		memmove(uintptr(hd.dest), uintptr(obj), uintptr(hd.size))
	})
}

// moveTenured slides surviving tenured objects down to their compacted
// positions. Forwarding addresses never exceed the origin, so copying in
// address order cannot clobber an object that has yet to move.
func (h *Heap) moveTenured() {
	eachObjectOriginal(h.tenured, func(obj Ref) {
		hd := obj.header()
		if hd.status != marked {
			return
		}
		hd.status = notMarked
		memmove(uintptr(hd.dest), uintptr(obj), uintptr(hd.size))
	})
}

// sweepLarge unlinks and releases every dead large node and bleaches the
// survivors for the next collection.
func (h *Heap) sweepLarge() {
	h.eachLargeObject(func(node *largeObjectNode, obj Ref) {
		hd := obj.header()
		if hd.status == marked {
			hd.status = notMarked
			return
		}
		node.prev.next = node.next
		node.next.prev = node.prev
		release(unsafe.Pointer(node), largeNodeSize+uintptr(hd.size))
		if gcDebug {
			println("gc: reclaim large object", uint(uintptr(obj)))
		}
	})
}
