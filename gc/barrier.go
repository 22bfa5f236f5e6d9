package gc

// Write stores val into a strong reference slot owned by owner, applying
// the generational write barrier.
//
// Owners in eden or survivor take the fast path: a plain store. The minor
// collector scans those regions anyway, so no bookkeeping is needed. Owners
// in the mature regions adjust refcounts on both the new and the previous
// referent, which is what lets minor collections skip mature scanning.
func (h *Heap) Write(owner Ref, slot *Ref, val Ref) {
	switch owner.header().space {
	case EdenSpace, SurvivorSpace:
		*slot = val
	case TenuredSpace, LargeObjectSpace:
		h.refWrite(slot, val)
	default:
		panic("gc: write barrier from an object in an unknown space")
	}
}

// WriteWeak stores val into a weak reference slot owned by owner. Weak
// slots never hold refcounts, in any region, so this is a plain store.
func (h *Heap) WriteWeak(owner Ref, slot *Ref, val Ref) {
	*slot = val
}

// WriteRoot stores val into a reference slot owned by the root set: a slot
// inside a tracked Root record. Handle slots use the same path internally.
func (h *Heap) WriteRoot(slot *Ref, val Ref) {
	h.refWrite(slot, val)
}

// refWrite is the refcounted store: one unit of refcount per slot that
// resides in a root or mature object and currently points at the target.
// Null and tagged values carry no count.
func (h *Heap) refWrite(slot *Ref, val Ref) {
	if val != 0 && !val.IsTagged() {
		val.header().refcount++
	}
	if old := *slot; old != 0 && !old.IsTagged() {
		old.header().refcount--
	}
	*slot = val
}
