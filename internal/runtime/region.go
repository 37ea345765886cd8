package runtime

import (
	"sync"
	"sync/atomic"

	"github.com/omni-lang/omni/internal/runtime/concurrency"
)

// RegionID uniquely identifies a region for the lifetime of the process.
// The spec describes a 16-bit id; this port widens it since Go offers no
// packed-word pressure to keep it narrow and a wider id removes any need
// for id reuse/wraparound bookkeeping.
type RegionID uint64

// GlobalRegionID is the reserved id denoting the process-wide global
// region (§3: "a reserved id denotes the process-wide global region").
// Objects owned by it bypass inc_ref/dec_ref and never repair.
const GlobalRegionID RegionID = 0

// RegionSize and RegionAlignment give the byte-count and alignment types
// used throughout the allocator their own names, matching the teacher's
// region_alloc.go convention of distinguishing these from bare uintptr.
type RegionSize = uintptr
type RegionAlignment = uintptr

// ThreadID identifies the OS thread (or goroutine-worker, in this port —
// see SPEC_FULL.md L6) that owns a region for mutation purposes (§3, §5).
// Callers that care about the single-writer discipline set it explicitly
// via Region.SetOwner; the zero value means "unowned / unchecked".
type ThreadID int64

type regionState uint32

const (
	regionActive regionState = iota
	regionExited
	regionDestroyed
)

// chunk is one large backing block in a region's chunk list (§3).
type chunk struct {
	data []byte
	used uintptr
	next *chunk
}

// Region is a linear (arena/bump) allocator with a lifetime rank and
// optional parent, per §3. Small allocations are served from the inline
// buffer embedded in the struct; once that is exhausted, allocations bump
// through a growing list of chunks backed by real OS pages
// (region_sysmem.go). Region does not support freeing individual
// allocations — objects die with the region (region_reset/region_destroy),
// matching §3's lifecycle and replacing the teacher's per-object
// free-list allocator, which this port does not carry forward (see
// DESIGN.md).
type Region struct {
	id     RegionID
	rank   uint32
	parent *Region
	owner  ThreadID

	mu sync.Mutex

	inline       [256]byte
	inlineUsed   uintptr
	inlineHandedOut bool // forbids region_merge_safe, per §4.2

	chunks     *chunk // head of chunk list, most-recently-allocated first
	chunkCount uint64

	bytesAllocatedTotal uint64 // atomic
	bytesAllocatedPeak  uint64 // atomic
	state               uint32 // atomic regionState

	externalRC int64 // atomic; §4.2 region_retain_internal/release_internal

	rt *Runtime
}

// NewRegion creates a fresh region with rank 0, no parent (region_create,
// §4.2). The returned region is owned by rt's Runtime for chunk sizing
// and id allocation.
func (rt *Runtime) NewRegion() *Region {
	r := &Region{
		id:    rt.allocRegionID(),
		state: uint32(regionActive),
		rt:    rt,
	}
	r.inlineUsed = 0
	return r
}

// NewRegion is the package-level convenience over Default().NewRegion,
// matching the collaborator-facing region_create() signature in §6.
func NewRegion() *Region { return Default().NewRegion() }

// ID returns the region's identity.
func (r *Region) ID() RegionID { return r.id }

// Rank returns the region's lifetime rank (§3, §4.2).
func (r *Region) Rank() uint32 { return atomicLoadRank(r) }

func atomicLoadRank(r *Region) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rank
}

// Parent returns the region's ancestor, or nil.
func (r *Region) Parent() *Region {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parent
}

// SetParent implements omni_region_set_parent: records ancestry and, unless
// the caller has already set an explicit rank, assigns rank = parent.rank+1
// (§4.2).
func (r *Region) SetParent(p *Region) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parent = p
	if p != nil && r.rank == 0 {
		r.rank = p.Rank() + 1
	}
}

// SetLifetimeRank implements omni_region_set_lifetime_rank: sets the rank
// explicitly, used by generated code to mirror caller/callee nesting
// (§4.2).
func (r *Region) SetLifetimeRank(k uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rank = k
}

// LifetimeRank implements omni_region_get_lifetime_rank.
func (r *Region) LifetimeRank() uint32 { return r.Rank() }

// SetOwner tags the region with the OS-thread/worker identity that may
// mutate it (§3, §5). Unset (zero value) regions are not checked.
func (r *Region) SetOwner(t ThreadID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = t
}

// Owner returns the region's recorded owner thread.
func (r *Region) Owner() ThreadID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// Outlives implements omni_region_outlives: true iff a == b, or b's
// ancestor chain contains a. Siblings of equal rank never outlive each
// other, and nil never outlives anything (§4.2, §9 open question).
func Outlives(a, b *Region) bool {
	if a == nil {
		return false
	}
	if a == b {
		return true
	}
	for cur := b; cur != nil; cur = cur.Parent() {
		if cur.Parent() == a {
			return true
		}
	}
	return false
}

// BytesAllocated returns bytes_allocated_total (§3).
func (r *Region) BytesAllocated() uint64 { return atomic.LoadUint64(&r.bytesAllocatedTotal) }

// BytesAllocatedPeak returns bytes_allocated_peak (§3).
func (r *Region) BytesAllocatedPeak() uint64 { return atomic.LoadUint64(&r.bytesAllocatedPeak) }

// ChunkCount returns chunk_count (§3).
func (r *Region) ChunkCount() uint64 { return atomic.LoadUint64(&r.chunkCount) }

// InlineBufUsedBytes returns inline_buf_used_bytes (§3).
func (r *Region) InlineBufUsedBytes() uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inlineUsed
}

func (r *Region) isActive() bool { return regionState(atomic.LoadUint32(&r.state)) == regionActive }

func (r *Region) bumpAccounting(n uintptr) {
	total := atomic.AddUint64(&r.bytesAllocatedTotal, uint64(n))
	for {
		peak := concurrency.LoadUint64(&r.bytesAllocatedPeak)
		if total <= peak || concurrency.CASUint64(&r.bytesAllocatedPeak, peak, total) {
			break
		}
	}
}

// RetainInternal implements region_retain_internal: atomically bumps
// external_rc so the region survives region_exit (§4.2).
func (r *Region) RetainInternal() {
	atomic.AddInt64(&r.externalRC, 1)
}

// ReleaseInternal implements region_release_internal: atomically
// decrements external_rc, calling region_destroy_if_dead when it reaches
// zero (§4.2).
func (r *Region) ReleaseInternal() {
	if atomic.AddInt64(&r.externalRC, -1) <= 0 {
		r.DestroyIfDead()
	}
}

func (r *Region) externalRefCount() int64 { return atomic.LoadInt64(&r.externalRC) }

// Exit implements region_exit: marks the region's scope closed. If
// external_rc > 0 the region survives; otherwise it is destroyed
// immediately (§4.2, §7: "A region that is still externally retained
// after its scope ends survives until the last retain drops"). Calling
// Exit twice is idempotent (I1, §8).
func (r *Region) Exit() {
	if !concurrency.CASUint32(&r.state, uint32(regionActive), uint32(regionExited)) {
		return
	}
	r.DestroyIfDead()
}

// DestroyIfDead implements region_destroy_if_dead: if the region is
// exited and has no external retains, release its chunks and mark it
// destroyed. Idempotent.
func (r *Region) DestroyIfDead() {
	if regionState(atomic.LoadUint32(&r.state)) == regionActive {
		return // scope hasn't exited yet
	}
	if r.externalRefCount() > 0 {
		return
	}
	if !concurrency.CASUint32(&r.state, uint32(regionExited), uint32(regionDestroyed)) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseChunksLocked()
}

// Reset implements region_reset: zeroes counters and returns all chunk
// bytes for reuse; subsequent allocation starts at offset zero of the
// inline buffer (§3, P6).
func (r *Region) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseChunksLocked()
	r.inlineUsed = 0
	r.inlineHandedOut = false
	atomic.StoreUint64(&r.bytesAllocatedTotal, 0)
	atomic.StoreUint64(&r.bytesAllocatedPeak, 0)
	atomic.StoreUint64(&r.chunkCount, 0)
}

func (r *Region) releaseChunksLocked() {
	r.chunks = nil
	atomic.StoreUint64(&r.chunkCount, 0)
}
