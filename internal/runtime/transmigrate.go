package runtime

// Transmigrate implements transmigrate(v, dst): a deep copy of v into dst,
// preserving sharing within the copied graph via an identity map (§4.3).
// Immediates pass through unchanged (they carry no region). Objects already
// owned by dst, or by the global region, are returned as is rather than
// copied (§4.3 edge case: transmigrating an already-resident value is a
// no-op).
//
// The walk runs in two explicit-worklist passes rather than Go call
// recursion, so a long chain of nested pairs/arrays cannot overflow the
// stack regardless of depth, mirroring the non-recursive discipline
// refcount.go's finalizeLeaf uses for teardown. Pass one discovers every
// reachable non-resident object and allocates its empty shell in dst; pass
// two fills each shell's fields by re-reading the corresponding source
// object, resolving child values through the identity map built in pass
// one. Splitting discovery from population this way is what lets cyclic
// graphs (already handled by the identity map) resolve correctly without
// the two passes needing to agree on an order of children.
func Transmigrate(v Value, dst *Region) (Value, *AllocationError) {
	seen := map[*Object]Value{}

	root, ok := v.(*Object)
	if !ok || root.header.region == dst || root.header.region == nil {
		return v, nil
	}

	stack := []*Object{root}
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if o.header.region == dst || o.header.region == nil {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		shell, children := shellFor(o, dst)
		seen[o] = shell
		stack = append(stack, children...)
	}

	for o, copyV := range seen {
		populateShell(o, copyV, dst, seen)
	}

	return seen[root], nil
}

// shellFor allocates o's copy in dst with an empty (zero-value) payload of
// the matching composite kind, and returns the child objects that must
// themselves be visited. Leaf payloads (ints, floats, strings) are fully
// built here since they have no children to fill in later.
func shellFor(o *Object, dst *Region) (Value, []*Object) {
	switch p := o.payload.(type) {
	case int64:
		return newBoxedObj(dst, o.header.tag, p), nil
	case float64:
		return newBoxedObj(dst, o.header.tag, p), nil
	case string:
		return newBoxedObj(dst, o.header.tag, p), nil

	case *pairPayload:
		p.mu.Lock()
		a, b := p.a, p.b
		p.mu.Unlock()
		return newBoxedObj(dst, TagPair, &pairPayload{}), objectChildren(a, b)

	case *arrayPayload:
		p.mu.Lock()
		children := objectChildren(p.data...)
		p.mu.Unlock()
		return newBoxedObj(dst, TagArray, &arrayPayload{}), children

	case *boxPayload:
		p.mu.Lock()
		inner := p.value
		p.mu.Unlock()
		return newBoxedObj(dst, TagBox, &boxPayload{}), objectChildren(inner)

	case *dictPayload:
		p.mu.Lock()
		children := append(objectChildren(p.keys...), objectChildren(p.vals...)...)
		p.mu.Unlock()
		return newBoxedObj(dst, TagDict, &dictPayload{}), children

	case *setPayload:
		p.mu.Lock()
		children := objectChildren(p.members...)
		p.mu.Unlock()
		return newBoxedObj(dst, TagSet, &setPayload{}), children

	default:
		// Symbols, keywords, closures, errors, channels and threads are
		// not deep-copied: symbols/keywords are interned singletons,
		// closures/channels/threads carry identity that a copy would
		// break, and errors are treated as immutable leaf values — so the
		// transmigrated form aliases the source object instead of forking
		// it.
		return o, nil
	}
}

// populateShell fills copyV's composite fields by re-reading o's payload
// and resolving each child Value through seen. A no-op for leaf payloads
// and aliased (non-deep-copied) kinds, which shellFor already built in
// full.
func populateShell(o *Object, copyV Value, dst *Region, seen map[*Object]Value) {
	no, ok := copyV.(*Object)
	if !ok || no == o {
		return
	}

	switch np := no.payload.(type) {
	case *pairPayload:
		op := o.payload.(*pairPayload)
		op.mu.Lock()
		a, b := op.a, op.b
		op.mu.Unlock()
		np.a = resolveChild(a, dst, seen)
		np.b = resolveChild(b, dst, seen)

	case *arrayPayload:
		op := o.payload.(*arrayPayload)
		op.mu.Lock()
		src := append([]Value(nil), op.data...)
		op.mu.Unlock()
		np.data = make([]Value, len(src))
		for i, v := range src {
			np.data[i] = resolveChild(v, dst, seen)
		}

	case *boxPayload:
		op := o.payload.(*boxPayload)
		op.mu.Lock()
		inner := op.value
		op.mu.Unlock()
		np.value = resolveChild(inner, dst, seen)

	case *dictPayload:
		op := o.payload.(*dictPayload)
		op.mu.Lock()
		keys := append([]Value(nil), op.keys...)
		vals := append([]Value(nil), op.vals...)
		op.mu.Unlock()
		np.keys = make([]Value, len(keys))
		np.vals = make([]Value, len(vals))
		for i := range keys {
			np.keys[i] = resolveChild(keys[i], dst, seen)
			np.vals[i] = resolveChild(vals[i], dst, seen)
		}

	case *setPayload:
		op := o.payload.(*setPayload)
		op.mu.Lock()
		members := append([]Value(nil), op.members...)
		op.mu.Unlock()
		np.members = make([]Value, len(members))
		for i, v := range members {
			np.members[i] = resolveChild(v, dst, seen)
		}
	}
}

// resolveChild maps a child Value read from a source object to its copied
// counterpart: immediates and already-resident objects pass through
// unchanged, everything else must already be in seen since pass one of
// Transmigrate visits every reachable non-resident object before pass two
// runs.
func resolveChild(v Value, dst *Region, seen map[*Object]Value) Value {
	o, ok := v.(*Object)
	if !ok {
		return v
	}
	if o.header.region == dst || o.header.region == nil {
		return o
	}
	if copied, ok := seen[o]; ok {
		return copied
	}
	return o
}

func objectChildren(vs ...Value) []*Object {
	out := make([]*Object, 0, len(vs))
	for _, v := range vs {
		if c, ok := v.(*Object); ok {
			out = append(out, c)
		}
	}
	return out
}
