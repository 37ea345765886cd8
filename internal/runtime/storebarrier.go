package runtime

// StoreRepair implements the store barrier (§4.4): called at every
// "container.slot <- value" write site (box_set, pair set-car!/set-cdr!,
// array_set/push, dict_set, set_add), it restores the Region Closure
// Property — no object ever holds a pointer into a region that could be
// destroyed first — before the write is allowed to land.
//
// Decision table, mirroring §4.4 exactly:
//
//  1. value is an immediate, or nil/nothing, or container is unowned
//     (global region), or owner(value) == owner(container), or
//     owner(value) is the global region, or owner(value) outlives
//     owner(container): write as-is, no repair needed.
//  2. Otherwise a younger value is being stored into an older container.
//     Repair strategy: if owner(value)'s total allocated bytes is below
//     the configured merge threshold, transmigrate (cheap copy of a small
//     graph). Otherwise, if region_merge_permitted holds, splice the
//     whole source region into the container's region in O(1) via
//     region_merge_safe. Either path that cannot run falls back to
//     transmigration.
//
// In all cases the value StoreRepair returns is what must be written; the
// caller must store that, not the original value.
func StoreRepair(container *Object, value Value) Value {
	vo, ok := value.(*Object)
	if !ok {
		return value // immediate, or nil/nothing: rule 1
	}
	dst := container.header.region
	if dst == nil {
		return value // container lives in the global region: rule 1
	}
	src := vo.header.region
	if src == nil {
		return value // value is already global: rule 1
	}
	if src == dst {
		return value // same region: rule 1
	}
	if Outlives(src, dst) {
		return value // older value into younger container is safe: rule 1
	}

	// Younger value into older container: repair.
	if src.BytesAllocated() < dst.rt.cfg.MergeThreshold {
		return transmigrateOrNothing(value, dst)
	}
	if MergePermitted(src, dst) {
		MergeSafe(src, dst)
		rewriteOwnership(value, src, dst)
		return value // value's backing storage, and the value itself, now live under dst
	}
	return transmigrateOrNothing(value, dst)
}

// rewriteOwnership completes region_merge_safe's ownership transfer
// (§4.2: "transfers ownership of all resident objects by rewriting their
// owner-region id"). MergeSafe only splices src's backing chunks onto
// dst; every object still reporting header.region == src must also be
// updated, or it would report living in a region that, post-merge, no
// longer owns the storage it points into. This walks the graph reachable
// from root with an explicit worklist (not recursion, for the same
// stack-safety reason transmigrate.go's copy and refcount.go's teardown
// use one) and rewrites each src-owned object it finds.
func rewriteOwnership(root Value, src, dst *Region) {
	o, ok := root.(*Object)
	if !ok || o.header.region != src {
		return
	}
	seen := map[*Object]bool{}
	stack := []*Object{o}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if cur == nil || seen[cur] || cur.header.region != src {
			continue
		}
		seen[cur] = true
		cur.header.region = dst
		for _, child := range childObjects(cur) {
			if co, ok := child.(*Object); ok {
				stack = append(stack, co)
			}
		}
	}
}

func transmigrateOrNothing(value Value, dst *Region) Value {
	copied, err := Transmigrate(value, dst)
	if err != nil {
		// Transmigration failure (out of memory in dst) is reported to the
		// caller as Nothing rather than surfacing a Go error, per §7's
		// in-band result discipline for collaborator-facing constructors;
		// the write does not happen and the container keeps its prior
		// value.
		return Nothing()
	}
	return copied
}
