package runtime

import "sync/atomic"

// Config bundles the tunable knobs named in §6 and §9's design note: the
// store-barrier merge threshold, the default chunk size for region growth,
// and small-object pool sizing. A Config is normally embedded in a Runtime
// value; defaultRuntime below is the thin process-wide singleton described
// in §9 for embedders who do not want to thread one explicitly, mirroring
// the teacher's DefaultAllocatorPolicy()/AllocatorPolicy split.
type Config struct {
	// MergeThreshold is get_merge_threshold's backing value (§4.4, §6):
	// below this many bytes allocated in the source region, a store-barrier
	// repair transmigrates rather than merges. Default 4096 (§4.4).
	MergeThreshold RegionSize

	// DefaultChunkSize is the chunk size a region grows by when its inline
	// buffer and current chunk are exhausted (§4.2).
	DefaultChunkSize RegionSize

	// InlineBufferSize records the size of the inline allocation buffer
	// embedded in every region (§3). The region allocator does not read it:
	// Region.inline is a fixed [256]byte array whatever this is set to.
	InlineBufferSize RegionSize

	// PoolMaxPerClass bounds how many freed objects of a given size class
	// the small-object pool retains before it starts discarding (§4.1).
	PoolMaxPerClass int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MergeThreshold:   4096,
		DefaultChunkSize: 64 * 1024,
		InlineBufferSize: 256,
		PoolMaxPerClass:  4096,
	}
}

// Runtime is the explicit, embeddable handle over the omni core: a
// region-id allocator, a small-object pool, and a Config. Multiple Runtime
// values can coexist in one process (e.g. one per isolated interpreter);
// Default() below is a convenience singleton, not a requirement.
type Runtime struct {
	cfg      Config
	nextID   uint64 // atomic; process-wide region id allocator (§3: 16-bit in spec, widened here)
	pool     *objectPool
	globalID RegionID
}

// New creates a Runtime with the given config, reserving the first id from
// its allocator as globalID. No Region value is created for the global
// region: global objects carry a nil *Region.
func New(cfg Config) *Runtime {
	rt := &Runtime{cfg: cfg, pool: newObjectPool(cfg.PoolMaxPerClass)}
	rt.globalID = RegionID(atomic.AddUint64(&rt.nextID, 1))
	return rt
}

// MergeThreshold implements get_merge_threshold (§6).
func (rt *Runtime) MergeThreshold() RegionSize { return rt.cfg.MergeThreshold }

func (rt *Runtime) allocRegionID() RegionID {
	return RegionID(atomic.AddUint64(&rt.nextID, 1))
}

var defaultRuntime = New(DefaultConfig())

// Default returns the process-wide singleton Runtime. The package-level
// NewRegion in region.go is a thin wrapper over it; the mk_* constructors
// in object.go take a *Region (nil for global) and do not use a Runtime.
// Embedders that want isolation should construct their own Runtime with
// New and use its methods directly.
func Default() *Runtime { return defaultRuntime }
