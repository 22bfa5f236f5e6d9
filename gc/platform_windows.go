//go:build windows

package gc

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// reserve asks the operating system for a zero-filled, page-backed block of
// size bytes.
func reserve(size uintptr) (unsafe.Pointer, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, &OutOfMemoryError{Size: size, Err: err}
	}
	return unsafe.Pointer(addr), nil
}

// release returns a block obtained from reserve.
func release(ptr unsafe.Pointer, size uintptr) {
	windows.VirtualFree(uintptr(ptr), 0, windows.MEM_RELEASE)
}
