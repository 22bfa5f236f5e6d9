package gc

import "testing"

// Shared test fixtures.
//
// The node class is a small object with two strong slots, one weak slot and
// one value word:
//
//	payload: [strong0][strong1][weak][value]
const nodePayload = 4 * wordSize

type nodeHooks struct {
	finalized    int
	weakNotified int
}

func registerNodeClass(h *Heap, hooks *nodeHooks) ClassID {
	return h.RegisterClass(Class{
		Name: "node",
		Fields: func(h *Heap, obj Ref, v Visitor) {
			v.Visit(SlotAt(obj, 0))
			v.Visit(SlotAt(obj, wordSize))
			v.VisitWeak(SlotAt(obj, 2*wordSize))
		},
		Finalize: func(h *Heap, obj Ref) {
			hooks.finalized++
		},
		WeakCollected: func(h *Heap, obj Ref, slot *Ref) {
			hooks.weakNotified++
		},
	})
}

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Close)
	return h
}

func mustAllocate(t *testing.T, h *Heap, c ClassID, payload uintptr) Ref {
	t.Helper()
	obj, err := h.Allocate(c, payload)
	if err != nil {
		t.Fatal(err)
	}
	return obj
}

func mustHandle(t *testing.T, h *Heap, v Ref) Handle {
	t.Helper()
	hd, err := h.NewHandle(v)
	if err != nil {
		t.Fatal(err)
	}
	return hd
}

// spaceContains reports whether obj lies inside the allocated part of the
// space chain.
func spaceContains(s *memorySpace, obj Ref) bool {
	for ; s != nil; s = s.next {
		if uintptr(obj) >= s.begin() && uintptr(obj) < s.end() {
			return true
		}
	}
	return false
}

// payloadSizeFor returns the payload that makes the total object size come
// out at total bytes.
func payloadSizeFor(total uintptr) uintptr {
	return total - headerSize
}

func expectPanic(t *testing.T, msg string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected a panic", msg)
		}
	}()
	fn()
}
