//go:build unix

package gc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// reserve asks the operating system for a zero-filled, page-backed block of
// size bytes.
func reserve(size uintptr) (unsafe.Pointer, error) {
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, &OutOfMemoryError{Size: size, Err: err}
	}
	return unsafe.Pointer(&mem[0]), nil
}

// release returns a block obtained from reserve. The size must match the
// reservation exactly.
func release(ptr unsafe.Pointer, size uintptr) {
	unix.Munmap(unsafe.Slice((*byte)(ptr), size))
}
