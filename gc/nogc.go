package gc

// NoGC runs fn inside a no-collection scope. Scopes nest. While any scope
// is active the collector never runs: nursery allocation proceeds as usual,
// nursery exhaustion diverts allocations into the survivor space (growing
// its overflow chain as needed), and an explicit MinorGC or MajorGC is a
// fatal invariant violation.
//
// Raw Refs obtained inside the scope stay valid for its whole extent, since
// nothing can move them.
func (h *Heap) NoGC(fn func()) {
	h.noGC++
	defer func() {
		h.noGC--
	}()
	fn()
}

// GCSuspended reports whether a NoGC scope is active.
func (h *Heap) GCSuspended() bool {
	return h.noGC > 0
}
