//go:build windows

package runtime

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// allocSystemChunk reserves and commits size bytes via VirtualAlloc, the
// Windows counterpart to the Unix mmap path in region_sysmem.go.
func allocSystemChunk(size RegionSize) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size)), nil
}
