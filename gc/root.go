package gc

// Root is an explicitly registered member of the root set. The application
// embeds or owns a Root, points Fields at a function that enumerates the
// reference slots the root owns, and brackets the root's lifetime with
// Track and Untrack.
//
// Slots owned by a root must be written through WriteRoot so their targets'
// refcounts stay correct; the slots themselves should be nil when the root
// is tracked.
type Root struct {
	// Fields hands every slot owned by this root to the visitor. Leave nil
	// for a root without slots.
	Fields func(v Visitor)

	// WeakCollected is invoked for each weak slot whose referent was
	// reclaimed, after the slot has been nulled. Optional.
	WeakCollected func(slot *Ref)

	// Doubly linked list through all tracked roots. The heap's rootHead is
	// the list sentinel.
	prev, next *Root

	tracked bool
}

// Track enrolls a root. Its slots now keep their referents alive across
// collections, and are rewritten when referents move.
func (h *Heap) Track(r *Root) {
	if r.tracked {
		panic("gc: root is already tracked")
	}
	r.prev = h.rootHead.prev
	r.next = &h.rootHead
	h.rootHead.prev.next = r
	h.rootHead.prev = r
	r.tracked = true
}

// Untrack removes a root from the root set, dropping the refcount units its
// strong slots hold so their referents can be reclaimed by the next minor
// collection.
func (h *Heap) Untrack(r *Root) {
	if !r.tracked {
		panic("gc: untracking a root that is not tracked")
	}
	if r.Fields != nil {
		r.Fields(decRefVisitor{})
	}
	r.prev.next = r.next
	r.next.prev = r.prev
	r.prev, r.next = nil, nil
	r.tracked = false
}

// eachRoot walks the tracked root list.
func (h *Heap) eachRoot(fn func(r *Root)) {
	for r := h.rootHead.next; r != &h.rootHead; r = r.next {
		fn(r)
	}
}
