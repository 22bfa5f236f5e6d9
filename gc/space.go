package gc

import "unsafe"

// memorySpace is a bump-pointer arena. The struct itself lives at the start
// of the reserved block, so top and topOriginal are byte offsets from the
// space's own address. Spaces of equal capacity chain through next to absorb
// overflow; allocation walks the chain front to back.
type memorySpace struct {
	top         uintptr // offset of the next free byte
	capacity    uintptr
	topOriginal uintptr // snapshot of top, see saveOriginal
	next        *memorySpace
}

// spaceHeaderSize is the offset of the first allocatable byte.
const spaceHeaderSize = (unsafe.Sizeof(memorySpace{}) + 7) &^ 7

// newMemorySpace reserves a block from the platform and places the space
// header at its base.
func newMemorySpace(capacity uintptr) (*memorySpace, error) {
	ptr, err := reserve(capacity)
	if err != nil {
		return nil, err
	}
	s := (*memorySpace)(ptr)
	*s = memorySpace{top: spaceHeaderSize, topOriginal: spaceHeaderSize, capacity: capacity}
	return s, nil
}

func (s *memorySpace) base() uintptr {
	return uintptr(unsafe.Pointer(s))
}

// begin returns the address of the first allocated byte.
func (s *memorySpace) begin() uintptr {
	return s.base() + spaceHeaderSize
}

// end returns the address just past the last allocated byte.
func (s *memorySpace) end() uintptr {
	return s.base() + s.top
}

// originalEnd returns the address just past the last byte that was allocated
// when saveOriginal ran.
func (s *memorySpace) originalEnd() uintptr {
	return s.base() + s.topOriginal
}

func (s *memorySpace) empty() bool {
	return s.top == spaceHeaderSize
}

// allocate carves size bytes out of the space. The size must be a multiple
// of 8. Without expand, a full chain yields address 0; with expand, a fresh
// overflow space of equal capacity is chained on and the allocation retried
// there, so the only failure mode is the platform running dry.
func (s *memorySpace) allocate(size uintptr, expand bool) (uintptr, error) {
	if gcAsserts && size&7 != 0 {
		panic("gc: memory space allocation is not 8-byte aligned")
	}
	if s.top+size > s.capacity {
		if s.next == nil {
			if !expand {
				return 0, nil
			}
			next, err := newMemorySpace(s.capacity)
			if err != nil {
				return 0, err
			}
			s.next = next
			addr, err := next.allocate(size, false)
			if gcAsserts && addr == 0 && err == nil {
				panic("gc: allocation does not fit a fresh memory space")
			}
			return addr, err
		}
		return s.next.allocate(size, expand)
	}
	addr := s.base() + s.top
	s.top += size
	return addr, nil
}

// clear resets the allocation mark on the space and its overflow chain. The
// overflow spaces themselves are kept for re-use.
func (s *memorySpace) clear() {
	s.top = spaceHeaderSize
	if s.next != nil {
		s.next.clear()
	}
}

// saveOriginal snapshots top on the space and its overflow chain. Passes
// that allocate into a space while iterating it bound their walk with
// originalEnd so freshly reserved, not yet copied space is never read.
func (s *memorySpace) saveOriginal() {
	s.topOriginal = s.top
	if s.next != nil {
		s.next.saveOriginal()
	}
}

// fillUnallocated poisons the unallocated tail of the space and its overflow
// chain. Debug builds use this to make stale pointers fail loudly.
func (s *memorySpace) fillUnallocated(b byte) {
	free := unsafe.Slice((*byte)(unsafe.Pointer(s.end())), s.capacity-s.top)
	for i := range free {
		free[i] = b
	}
	if s.next != nil {
		s.next.fillUnallocated(b)
	}
}

// trim releases empty overflow spaces at the tail of the chain, keeping up
// to allowedEmptyTail of them around as allocation slack.
func (s *memorySpace) trim(allowedEmptyTail uintptr) {
	if s.next == nil {
		return
	}
	if s.next.empty() {
		if allowedEmptyTail > 0 {
			s.next.trim(allowedEmptyTail - 1)
		} else {
			s.next.trim(0)
			next := s.next
			s.next = next.next
			next.next = nil
			next.destroy()
		}
	} else {
		s.next.trim(allowedEmptyTail)
	}
}

// destroy releases the space and its overflow chain back to the platform.
func (s *memorySpace) destroy() {
	if s.next != nil {
		s.next.destroy()
	}
	release(unsafe.Pointer(s), s.capacity)
}
