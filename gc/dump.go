package gc

// Dump passes every live object to the visitor, walking eden, survivor-from,
// tenured and the large-object list. Objects that are unreachable but have
// not been collected yet are included; Dump does not trace. Fatal during a
// collection.
func (h *Heap) Dump(visit func(obj Ref)) {
	if h.collecting {
		panic("gc: dump during a collection")
	}
	eachObject(h.eden, visit)
	eachObject(h.survivorFrom, visit)
	eachObject(h.tenured, visit)
	h.eachLargeObject(func(_ *largeObjectNode, obj Ref) {
		visit(obj)
	})
}

// dumpSpaces prints the state of every heap object to standard error, for
// debugging purposes.
func (h *Heap) dumpSpaces() {
	println("heap:")
	h.Dump(func(obj Ref) {
		hd := obj.header()
		println("-", uint(uintptr(obj)), hd.space.String(), h.class(obj).Name,
			"size", uint(hd.size), "refcount", uint(hd.refcount), "lifetime", uint(hd.lifetime))
	})
}
