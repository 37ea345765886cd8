//go:build !windows

// Package runtime — chunk backing storage. The teacher's region_alloc.go
// left a comment that system chunk allocation "would use mmap() on Unix
// or VirtualAlloc() on Windows" but actually allocated with Go's make()
// as a placeholder; this port follows through on that comment with a
// real anonymous mmap via golang.org/x/sys/unix (see SPEC_FULL.md's
// domain-stack table).
package runtime

import "golang.org/x/sys/unix"

// allocSystemChunk reserves a zero-filled anonymous mapping of at least
// size bytes for use as a region chunk (§4.2).
func allocSystemChunk(size RegionSize) ([]byte, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return data, nil
}
