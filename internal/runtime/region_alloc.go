package runtime

import "unsafe"

// isPowerOfTwo reports whether n is a power of two, kept from the
// teacher's region_memory.go helper of the same name.
func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

// alignUp rounds off up to the next multiple of align (align must be a
// power of two), kept from the teacher's region_memory.go helper.
func alignUp(off int64, align int64) int64 {
	return (off + align - 1) &^ (align - 1)
}

func alignUpUintptr(off, align uintptr) uintptr {
	return uintptr(alignUp(int64(off), int64(align)))
}

// Alloc implements region_alloc: allocate n aligned bytes, trying the
// inline buffer first, then the current chunk's bump frontier, then a
// fresh chunk sized max(default_chunk, round_up(n)) (§4.2).
func (r *Region) Alloc(n RegionSize) ([]byte, error) {
	return r.AllocTyped(n, 0)
}

// AllocTyped implements region_alloc_typed. The tag is informational only
// in this port (no separate typed-allocation bookkeeping beyond what
// ObjectHeader.Tag already records); it is accepted for API fidelity
// with §6.
func (r *Region) AllocTyped(n RegionSize, _ Tag) ([]byte, error) {
	if !r.isActive() {
		return nil, newAllocError(ErrRegionNotActive, "region not active", r.id, n)
	}
	if n == 0 {
		return nil, newAllocError(ErrInvalidSize, "zero size allocation", r.id, n)
	}

	const align = unsafe.Sizeof(uintptr(0))

	r.mu.Lock()
	defer r.mu.Unlock()

	// Try the inline buffer.
	aligned := alignUpUintptr(r.inlineUsed, align)
	if aligned+n <= uintptr(len(r.inline)) {
		buf := r.inline[aligned : aligned+n]
		r.inlineUsed = aligned + n
		r.inlineHandedOut = true
		r.bumpAccounting(n)
		return buf, nil
	}

	// Try the current chunk's bump frontier.
	if r.chunks != nil {
		c := r.chunks
		off := alignUpUintptr(c.used, align)
		if off+n <= uintptr(len(c.data)) {
			buf := c.data[off : off+n]
			c.used = off + n
			r.bumpAccounting(n)
			return buf, nil
		}
	}

	// Allocate a fresh chunk.
	chunkSize := r.rt.cfg.DefaultChunkSize
	if n > chunkSize {
		chunkSize = n
	}
	data, err := allocSystemChunk(chunkSize)
	if err != nil {
		return nil, newAllocError(ErrOutOfMemory, err.Error(), r.id, n)
	}
	c := &chunk{data: data}
	buf := c.data[0:n]
	c.used = n
	c.next = r.chunks
	r.chunks = c
	r.chunkCount++
	r.bumpAccounting(n)
	return buf, nil
}

// Realloc implements region_realloc (§4.2):
//   - new <= old: returns p unchanged (no-op).
//   - p == nil && old == 0: a fresh allocation.
//   - else: a new `new`-byte buffer, old bytes copied, old space not
//     reclaimed (arena semantics).
func (r *Region) Realloc(p []byte, old, new RegionSize) ([]byte, error) {
	if new <= old {
		return p, nil
	}
	if p == nil && old == 0 {
		return r.Alloc(new)
	}
	buf, err := r.Alloc(new)
	if err != nil {
		return nil, err
	}
	copy(buf, p[:old])
	return buf, nil
}

// MergePermitted implements region_merge_permitted: false if src and dst
// are owned by different threads, or if src has handed out any
// inline-buffer pointers (those addresses are embedded in the Region
// struct and cannot move), per §4.2.
func MergePermitted(src, dst *Region) bool {
	if src == nil || dst == nil || src == dst {
		return false
	}
	if src.Owner() != 0 && dst.Owner() != 0 && src.Owner() != dst.Owner() {
		return false
	}
	src.mu.Lock()
	handedOut := src.inlineHandedOut
	src.mu.Unlock()
	return !handedOut
}

// MergeSafe implements region_merge_safe: splices src's chunk list onto
// dst, updates accounting, and empties src. It does not itself rewrite any
// resident Go-level object's Region pointer — the caller must do that
// (the store barrier in storebarrier.go is the only caller in this
// codebase, and it walks the repaired value's graph and rewrites
// header.region for every src-owned object it finds, as part of the
// repair).
func MergeSafe(src, dst *Region) {
	src.mu.Lock()
	dst.mu.Lock()
	defer dst.mu.Unlock()
	defer src.mu.Unlock()

	if src.chunks != nil {
		tail := src.chunks
		for tail.next != nil {
			tail = tail.next
		}
		tail.next = dst.chunks
		dst.chunks = src.chunks
	}
	dst.chunkCount += src.chunkCount
	dst.bumpAccounting(atomicLoadTotal(src))

	src.chunks = nil
	src.chunkCount = 0
}

func atomicLoadTotal(r *Region) uint64 { return r.BytesAllocated() }
