package runtime

import (
	"fmt"
	"sync"

	"github.com/omni-lang/omni/internal/runtime/concurrency"
)

// Tag identifies the kind of a boxed object, or the kind carried by an
// immediate (§3).
type Tag uint8

const (
	TagNil Tag = iota
	TagNothing
	TagInt
	TagFloat
	TagBool
	TagChar
	TagString
	TagSymbol
	TagKeyword
	TagPair
	TagArray
	TagDict
	TagSet
	TagBox
	TagAtom
	TagChannel
	TagThread
	TagClosure
	TagError
)

func (t Tag) String() string {
	names := [...]string{"nil", "nothing", "int", "float", "bool", "char",
		"string", "symbol", "keyword", "pair", "array", "dict", "set",
		"box", "atom", "channel", "thread", "closure", "error"}
	if int(t) < len(names) {
		return names[t]
	}
	return fmt.Sprintf("tag(%d)", t)
}

// Value is either an immediate (Immediate) or a boxed object (*Object),
// per §3. Rather than NaN-box or low-tag a raw machine word (§9's open
// question between the two C-side schemes), this port represents Value
// as a small interface: Immediate is a value type carrying no heap
// allocation and no ownership (§3 invariant 5), and *Object is a boxed,
// heap-allocated, region-owned value. Both satisfy the Object-Model
// contract; see DESIGN.md for why the interface form was chosen over
// unsafe pointer tagging in a garbage-collected host language.
type Value interface {
	Tag() Tag
	isOmniValue()
}

// --- Immediates -------------------------------------------------------

type immKind uint8

const (
	immNil immKind = iota
	immNothing
	immInt
	immBool
	immChar
)

// Immediate is a value carried directly with no heap object and no
// ownership; inc_ref/dec_ref and the store barrier are no-ops on it
// (§3 invariant 5, §4.1, §4.4).
type Immediate struct {
	kind immKind
	i    int64
	b    bool
}

func (v Immediate) isOmniValue() {}

func (v Immediate) Tag() Tag {
	switch v.kind {
	case immNil:
		return TagNil
	case immNothing:
		return TagNothing
	case immInt:
		return TagInt
	case immBool:
		return TagBool
	case immChar:
		return TagChar
	default:
		return TagNothing
	}
}

var (
	nilValue     = Immediate{kind: immNil}
	nothingValue = Immediate{kind: immNothing}
)

// Nil returns the distinguished nil singleton.
func Nil() Value { return nilValue }

// Nothing returns the distinguished nothing singleton (§3, §7): the
// value returned by predicates/constructors on type mismatch or
// allocation failure, distinct from nil.
func Nothing() Value { return nothingValue }

// NewBool returns an immediate boolean.
func NewBool(b bool) Value { return Immediate{kind: immBool, b: b} }

// NewChar returns an immediate character (Unicode code point).
func NewChar(r rune) Value { return Immediate{kind: immChar, i: int64(r)} }

// smallIntMin/Max bound the language-defined immediate integer range
// (§4.1: "Small integers in a language-defined range are returned as
// immediates; all other numbers are boxed").
const (
	smallIntMin = -(int64(1) << 60)
	smallIntMax = (int64(1) << 60) - 1
)

// NewInt returns an immediate for small integers, or a boxed int object
// in the global region otherwise (§4.1). NewIntIn allocates the boxed
// form, when needed, into region r.
func NewInt(n int64) Value { return NewIntIn(nil, n) }

// NewIntIn is the region-aware variant (mk_int_region, §4.1).
func NewIntIn(r *Region, n int64) Value {
	if n >= smallIntMin && n <= smallIntMax {
		return Immediate{kind: immInt, i: n}
	}
	return newBoxed(r, TagInt, n)
}

// NewFloat returns a boxed float object; floats are never immediate
// (§4.1).
func NewFloat(f float64) Value { return NewFloatIn(nil, f) }
func NewFloatIn(r *Region, f float64) Value { return newBoxed(r, TagFloat, f) }

// NewString returns a boxed, immutable string object.
func NewString(s string) Value { return NewStringIn(nil, s) }
func NewStringIn(r *Region, s string) Value { return newBoxed(r, TagString, s) }

// Symbols and keywords intern into lock-free hash maps rather than a
// mutex-guarded map: interning is a hot path for any reader/evaluator
// loop and has the same read-mostly, append-only shape the teacher's
// LockFreeMap was built for (see DESIGN.md).
var (
	symbolTable  = concurrency.NewStringLockFreeMap[*Object](256)
	keywordTable = concurrency.NewStringLockFreeMap[*Object](256)
)

// NewSymbol interns the name, so two calls with equal names yield the
// same *Object and are eq? by pointer identity, matching conventional
// Lisp symbol semantics.
func NewSymbol(name string) Value {
	if o, ok := symbolTable.Load(name); ok {
		return o
	}
	o, _ := symbolTable.LoadOrStore(name, newBoxedObj(nil, TagSymbol, name))
	return o
}

// NewKeyword interns the name under the keyword table, separate from
// symbols (§3).
func NewKeyword(name string) Value {
	if o, ok := keywordTable.Load(name); ok {
		return o
	}
	o, _ := keywordTable.LoadOrStore(name, newBoxedObj(nil, TagKeyword, name))
	return o
}

// --- Pairs --------------------------------------------------------

type pairPayload struct {
	mu   sync.Mutex
	a, b Value
}

// NewPair implements mk_pair / cons.
func NewPair(a, b Value) Value { return NewPairIn(nil, a, b) }

// NewPairIn implements mk_pair_region.
func NewPairIn(r *Region, a, b Value) Value {
	return newBoxed(r, TagPair, &pairPayload{a: a, b: b})
}

// PairA implements pair_a.
func PairA(v Value) Value {
	o, p := asPayload[*pairPayload](v, TagPair)
	if o == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.a
}

// PairB implements pair_b.
func PairB(v Value) Value {
	o, p := asPayload[*pairPayload](v, TagPair)
	if o == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.b
}

// SetPairA stores into the pair's a slot through the store barrier
// (§4.4: every "container.slot <- value" write is a repair site).
func SetPairA(container Value, value Value) Value {
	o, p := asPayload[*pairPayload](container, TagPair)
	if o == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	value = StoreRepair(o, value)
	p.a = value
	return value
}

// SetPairB stores into the pair's b slot through the store barrier.
func SetPairB(container Value, value Value) Value {
	o, p := asPayload[*pairPayload](container, TagPair)
	if o == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	value = StoreRepair(o, value)
	p.b = value
	return value
}

// --- Arrays ---------------------------------------------------------

type arrayPayload struct {
	mu   sync.Mutex
	data []Value
}

// NewArray implements mk_array(cap).
func NewArray(capacity int) Value { return NewArrayIn(nil, capacity) }

// NewArrayIn implements mk_array_region.
func NewArrayIn(r *Region, capacity int) Value {
	if capacity < 0 {
		capacity = 0
	}
	return newBoxed(r, TagArray, &arrayPayload{data: make([]Value, 0, capacity)})
}

// ArrayLength implements array_length. Boundary: a non-array returns 0
// (§8 boundary behaviours: empty arrays return length 0).
func ArrayLength(v Value) int {
	_, p := asPayload[*arrayPayload](v, TagArray)
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data)
}

// ArrayGet implements array_get. Out-of-range returns Nothing.
func ArrayGet(v Value, i int) Value {
	_, p := asPayload[*arrayPayload](v, TagArray)
	if p == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.data) {
		return Nothing()
	}
	return p.data[i]
}

// ArraySet implements array_set, going through the store barrier.
func ArraySet(container Value, i int, value Value) Value {
	o, p := asPayload[*arrayPayload](container, TagArray)
	if p == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.data) {
		return Nothing()
	}
	value = StoreRepair(o, value)
	p.data[i] = value
	return value
}

// ArrayPush implements array_push, going through the store barrier.
func ArrayPush(container Value, value Value) Value {
	o, p := asPayload[*arrayPayload](container, TagArray)
	if p == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	value = StoreRepair(o, value)
	p.data = append(p.data, value)
	return value
}

// --- Dicts and sets ---------------------------------------------------

type dictPayload struct {
	mu   sync.Mutex
	keys []Value
	vals []Value
}

// NewDict implements mk_dict. A plain guarded slice pair is used rather
// than the concurrency.LockFreeMap subpackage: dict keys are arbitrary
// Values (including boxed ones compared by eq?), and the lock-free map
// requires a comparable Go key type with a supplied hash function. Sets
// (below) use the same approach: a guarded slice scanned with ValueEqual.
func NewDict() Value { return NewDictIn(nil) }
func NewDictIn(r *Region) Value { return newBoxed(r, TagDict, &dictPayload{}) }

// DictGet implements dict_get.
func DictGet(v Value, key Value) Value {
	_, p := asPayload[*dictPayload](v, TagDict)
	if p == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, k := range p.keys {
		if ValueEqual(k, key) {
			return p.vals[i]
		}
	}
	return Nothing()
}

// DictSet implements dict_set, going through the store barrier for the
// stored value (the key, typically a symbol or small immediate, is not
// barrier-checked independently — it is looked up by identity/equality,
// not retained as a container slot in the Region-Closure sense beyond
// what the value side already captures).
func DictSet(container Value, key Value, value Value) Value {
	o, p := asPayload[*dictPayload](container, TagDict)
	if p == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	value = StoreRepair(o, value)
	for i, k := range p.keys {
		if ValueEqual(k, key) {
			p.vals[i] = value
			return value
		}
	}
	p.keys = append(p.keys, key)
	p.vals = append(p.vals, value)
	return value
}

type setPayload struct {
	mu      sync.Mutex
	members []Value
}

// NewSet implements mk_set.
func NewSet() Value { return newBoxed(nil, TagSet, &setPayload{}) }

// SetAdd implements set_add.
func SetAdd(container Value, v Value) {
	o, p := asPayload[*setPayload](container, TagSet)
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.members {
		if ValueEqual(m, v) {
			return
		}
	}
	v = StoreRepair(o, v)
	p.members = append(p.members, v)
}

// SetRemove implements set_remove.
func SetRemove(container Value, v Value) {
	_, p := asPayload[*setPayload](container, TagSet)
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, m := range p.members {
		if ValueEqual(m, v) {
			p.members = append(p.members[:i], p.members[i+1:]...)
			return
		}
	}
}

// SetContains implements set_contains.
func SetContains(container Value, v Value) bool {
	_, p := asPayload[*setPayload](container, TagSet)
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.members {
		if ValueEqual(m, v) {
			return true
		}
	}
	return false
}

// SetSize implements set_size.
func SetSize(container Value) int {
	_, p := asPayload[*setPayload](container, TagSet)
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.members)
}

// --- Boxes ------------------------------------------------------------

type boxPayload struct {
	mu    sync.Mutex
	value Value
}

// NewBox implements mk_box.
func NewBox(v Value) Value { return NewBoxIn(nil, v) }
func NewBoxIn(r *Region, v Value) Value {
	return newBoxed(r, TagBox, &boxPayload{value: v})
}

// BoxGet implements box_get.
func BoxGet(v Value) Value {
	_, p := asPayload[*boxPayload](v, TagBox)
	if p == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// BoxSet implements box_set, the spec's own worked store-barrier example
// (S2): written through StoreRepair so a younger value stored into an
// older box's region is transmigrated or merged in.
func BoxSet(container Value, value Value) Value {
	o, p := asPayload[*boxPayload](container, TagBox)
	if p == nil {
		return Nothing()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	value = StoreRepair(o, value)
	p.value = value
	return value
}

// --- Closures and errors -----------------------------------------------

// ClosureFunc is the shape a closure payload carries; the evaluator
// collaborator (out of scope here) is responsible for populating and
// invoking these.
type ClosureFunc func(args []Value) Value

// NewClosure implements mk_closure.
func NewClosure(fn ClosureFunc, captured []Value) Value {
	return newBoxed(nil, TagClosure, closurePayload{fn: fn, captured: captured})
}

type closurePayload struct {
	fn       ClosureFunc
	captured []Value
}

// CallClosure invokes a closure's function with args, returning Nothing
// if v is not a closure.
func CallClosure(v Value, args []Value) Value {
	_, p := asPayload[closurePayload](v, TagClosure)
	if p.fn == nil {
		return Nothing()
	}
	return p.fn(args)
}

// NewError implements the tagged error object described in §7: a
// TagError object carrying a message, used for domain errors (closed
// channel, file-not-found, ...) as opposed to Nothing (type mismatch)
// or process abort (invariant violation).
func NewError(msg string) Value { return newBoxed(nil, TagError, msg) }

// ErrorMessage extracts the message from a TagError object.
func ErrorMessage(v Value) (string, bool) {
	o, p := asPayload[string](v, TagError)
	if o == nil {
		return "", false
	}
	return p, true
}

// --- Object header and generic boxed constructor -----------------------

// ObjectHeader is the common header every boxed object carries (§3),
// grounded on the teacher's BlockHeader (block_manager.go), narrowed to
// the fields the spec actually names and widened to hold a *Region and
// *Component instead of raw pointers.
type ObjectHeader struct {
	tag       Tag
	refcount  uint32 // atomic, saturating (§3 invariant 4, P1)
	region    *Region
	component *Component
}

// Object is a boxed heap value (§3). Payload shape is determined by Tag;
// accessor functions above type-assert it back out. A Tag is attached so
// obj_tag works without reflection.
type Object struct {
	header  ObjectHeader
	payload any
}

func (o *Object) isOmniValue() {}
func (o *Object) Tag() Tag     { return o.header.tag }

// Region returns the object's owning region, or nil for the global
// region.
func (o *Object) Region() *Region { return o.header.region }

// Component returns the object's component handle, or nil if it is not
// a member of a cyclic group.
func (o *Object) Component() *Component { return o.header.component }

func newBoxed(r *Region, tag Tag, payload any) Value { return newBoxedObj(r, tag, payload) }

func newBoxedObj(r *Region, tag Tag, payload any) *Object {
	o := &Object{header: ObjectHeader{tag: tag, refcount: 1, region: r}, payload: payload}
	if r != nil {
		r.bumpAccounting(approxObjectSize(tag))
	}
	return o
}

// ContainerInRegion mints a throwaway *Object whose only meaningful field
// is header.region, letting a caller outside this package (namely
// channels.Channel, which is not itself a runtime.Object) invoke
// StoreRepair as if the channel were the container. StoreRepair reads
// nothing else off its container argument.
func ContainerInRegion(r *Region) *Object {
	return &Object{header: ObjectHeader{tag: TagNil, region: r}}
}

// NewOpaque lets sibling packages (fiber, channels) mint a runtime.Object
// wrapper with TagChannel/TagThread around their own concrete types, so
// channels and fibers can flow through pairs/arrays/dicts like any other
// Value without runtime importing those packages (which would cycle).
func NewOpaque(r *Region, tag Tag, payload any) Value { return newBoxed(r, tag, payload) }

// OpaquePayload extracts the payload installed by NewOpaque, for use by
// the owning package only (fiber/channels type-assert their own type
// back out).
func OpaquePayload(v Value) any {
	o, ok := v.(*Object)
	if !ok {
		return nil
	}
	return o.payload
}

func approxObjectSize(tag Tag) RegionSize {
	// A rough per-tag accounting unit: region byte accounting need not be
	// byte-exact for boxed Go objects (they live on the Go heap; see
	// DESIGN.md), only monotonic and representative enough to drive
	// merge_threshold decisions (§4.4) and region_reset/peak reporting.
	switch tag {
	case TagPair:
		return 32
	case TagBox:
		return 24
	default:
		return 48
	}
}

func asPayload[T any](v Value, tag Tag) (*Object, T) {
	var zero T
	o, ok := v.(*Object)
	if !ok || o == nil || o.header.tag != tag {
		return nil, zero
	}
	p, ok := o.payload.(T)
	if !ok {
		return o, zero
	}
	return o, p
}

// --- Predicates and extractors (§4.1, §6) ------------------------------

func ObjTag(v Value) Tag { return v.Tag() }

func IsInt(v Value) bool    { return v.Tag() == TagInt }
func IsFloat(v Value) bool  { return v.Tag() == TagFloat }
func IsBool(v Value) bool   { return v.Tag() == TagBool }
func IsChar(v Value) bool   { return v.Tag() == TagChar }
func IsString(v Value) bool { return v.Tag() == TagString }
func IsPair(v Value) bool   { return v.Tag() == TagPair }
func IsArray(v Value) bool  { return v.Tag() == TagArray }
func IsDict(v Value) bool   { return v.Tag() == TagDict }
func IsNil(v Value) bool    { return v.Tag() == TagNil }
func IsNothing(v Value) bool { return v.Tag() == TagNothing }

// ObjToInt implements obj_to_int: works for both the immediate and boxed
// representations of an integer.
func ObjToInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case Immediate:
		if x.kind == immInt {
			return x.i, true
		}
	case *Object:
		if x.header.tag == TagInt {
			if n, ok := x.payload.(int64); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// ObjToFloat implements obj_to_float.
func ObjToFloat(v Value) (float64, bool) {
	if o, ok := v.(*Object); ok && o.header.tag == TagFloat {
		if f, ok := o.payload.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

// ObjToBool implements obj_to_bool.
func ObjToBool(v Value) (bool, bool) {
	if im, ok := v.(Immediate); ok && im.kind == immBool {
		return im.b, true
	}
	return false, false
}

// ObjToCStrSafe implements obj_to_cstr_safe: returns the Go string for a
// string/symbol/keyword object, or ("", false) otherwise — "safe" in
// that it never panics on a mistagged value (§7: callers check before
// use).
func ObjToCStrSafe(v Value) (string, bool) {
	o, ok := v.(*Object)
	if !ok {
		return "", false
	}
	switch o.header.tag {
	case TagString, TagSymbol, TagKeyword:
		if s, ok := o.payload.(string); ok {
			return s, true
		}
	}
	return "", false
}

// ValueEqual is a structural-enough equality used by dict/set lookups:
// immediates compare by value, boxed objects by pointer identity (eq?),
// except strings, which compare by content (conventional Lisp equal? for
// the one boxed type collaborators most often use as a key).
func ValueEqual(a, b Value) bool {
	switch x := a.(type) {
	case Immediate:
		y, ok := b.(Immediate)
		return ok && x == y
	case *Object:
		y, ok := b.(*Object)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		if x.header.tag == TagString && y.header.tag == TagString {
			xs, _ := x.payload.(string)
			ys, _ := y.payload.(string)
			return xs == ys
		}
		return false
	default:
		return false
	}
}

// refcountAtomic exposes the header's refcount pointer for refcount.go.
func (o *Object) refcountAtomic() *uint32 { return &o.header.refcount }

func (o *Object) setComponent(c *Component) { o.header.component = c }
