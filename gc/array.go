package gc

import "unsafe"

// Typed array adapters: variable-length objects whose trailing storage is
// either N managed reference slots (RefArray) or N POD elements
// (ValueArray). Both reuse the ordinary object header; the length lives in
// the first payload word.

const wordSize = unsafe.Sizeof(uintptr(0))

// refArrayFields hands every slot of a RefArray to the visitor.
func refArrayFields(h *Heap, obj Ref, v Visitor) {
	n := *(*uintptr)(obj.Payload())
	for i := uintptr(0); i < n; i++ {
		v.Visit(SlotAt(obj, wordSize*(1+i)))
	}
}

// registerBuiltinClasses installs the array classes. Called once from New,
// before any user class can register.
func (h *Heap) registerBuiltinClasses() {
	h.refArrayClass = h.RegisterClass(Class{Name: "gc.RefArray", Fields: refArrayFields})
	h.valueArrayClass = h.RegisterClass(Class{Name: "gc.ValueArray"})
}

// NewRefArray allocates an array of length nil references.
func (h *Heap) NewRefArray(length int) (Ref, error) {
	if length < 0 {
		panic("gc: negative array length")
	}
	obj, err := h.Allocate(h.refArrayClass, wordSize*(1+uintptr(length)))
	if err != nil {
		return 0, err
	}
	*(*uintptr)(obj.Payload()) = uintptr(length)
	return obj, nil
}

// RefArrayLen returns the length of a RefArray.
func (h *Heap) RefArrayLen(a Ref) int {
	return int(*(*uintptr)(a.Payload()))
}

// RefArrayGet returns element i.
func (h *Heap) RefArrayGet(a Ref, i int) Ref {
	return *h.refArraySlot(a, i)
}

// RefArraySet stores v into element i through the write barrier.
func (h *Heap) RefArraySet(a Ref, i int, v Ref) {
	h.Write(a, h.refArraySlot(a, i), v)
}

func (h *Heap) refArraySlot(a Ref, i int) *Ref {
	if i < 0 || i >= h.RefArrayLen(a) {
		panic("gc: array index out of range")
	}
	return SlotAt(a, wordSize*(1+uintptr(i)))
}

// NewValueArray allocates an array of length zeroed POD elements of
// elemSize bytes each. The collector never looks inside the elements.
func (h *Heap) NewValueArray(elemSize uintptr, length int) (Ref, error) {
	if length < 0 {
		panic("gc: negative array length")
	}
	obj, err := h.Allocate(h.valueArrayClass, 2*wordSize+elemSize*uintptr(length))
	if err != nil {
		return 0, err
	}
	words := (*[2]uintptr)(obj.Payload())
	words[0] = uintptr(length)
	words[1] = elemSize
	return obj, nil
}

// ValueArrayLen returns the length of a ValueArray.
func (h *Heap) ValueArrayLen(a Ref) int {
	return int((*[2]uintptr)(a.Payload())[0])
}

// ValueArrayBytes returns the element storage as a byte slice. The slice
// aliases heap memory and is only valid until the next collection point.
func (h *Heap) ValueArrayBytes(a Ref) []byte {
	words := (*[2]uintptr)(a.Payload())
	return unsafe.Slice((*byte)(unsafe.Add(a.Payload(), 2*wordSize)), words[0]*words[1])
}
