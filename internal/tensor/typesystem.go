package tensor

import (
	"strings"
	"sync"

	"github.com/born-ml/lowbit/internal/errs"
)

// CastFunc converts n packed elements from src into dst.
type CastFunc func(dst, src []byte, n int)

type castKey struct{ from, to int }

// TypeSystem is the host's dynamic type table: builtin descriptors, types
// registered at runtime, and the cast functions between them.
//
// It is safe for concurrent use.
type TypeSystem struct {
	mu     sync.RWMutex
	byNum  map[int]*Descr
	byChar map[byte]*Descr
	next   int
	casts  map[castKey]CastFunc
}

// NewTypeSystem returns a type system holding only the builtin types.
func NewTypeSystem() *TypeSystem {
	ts := &TypeSystem{
		byNum:  make(map[int]*Descr),
		byChar: make(map[byte]*Descr),
		next:   UserDefined,
		casts:  make(map[castKey]CastFunc),
	}
	for _, d := range Builtins() {
		ts.byNum[d.TypeNum] = d
		ts.byChar[d.Char] = d
	}
	return ts
}

var defaultTypes = NewTypeSystem()

// DefaultTypes returns the process-wide type system.
func DefaultTypes() *TypeSystem {
	return defaultTypes
}

// RegisterDataType installs a new element type and returns its live
// descriptor with a freshly allocated type number. The descriptor's type code
// must not collide with a builtin, reserved or already registered code.
func (ts *TypeSystem) RegisterDataType(proto Descr) (*Descr, error) {
	if proto.ItemSize <= 0 || proto.Funcs.GetItem == nil || proto.Funcs.SetItem == nil {
		return nil, errs.New(errs.KindTypeRegistrationConflict).
			Phase(errs.PhaseRegistration).
			Op(proto.Name).
			Detail("descriptor needs a positive item size and element accessors").
			Build()
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if other, ok := ts.byChar[proto.Char]; ok || strings.IndexByte(reservedChars, proto.Char) >= 0 {
		owner := "a reserved host type"
		if ok {
			owner = other.Name
		}
		return nil, errs.New(errs.KindTypeRegistrationConflict).
			Phase(errs.PhaseRegistration).
			Op(proto.Name).
			Detail("type code %q already used by %s", proto.Char, owner).
			Build()
	}

	d := proto
	d.TypeNum = ts.next
	if d.ByteOrder == 0 {
		d.ByteOrder = ByteOrderNative
	}
	if d.Alignment == 0 {
		d.Alignment = d.ItemSize
	}
	if d.Funcs.Compare == nil {
		get := d.Funcs.GetItem
		d.Funcs.Compare = func(a, b []byte) int { return compareValues(get(a), get(b)) }
	}
	ts.next++
	ts.byNum[d.TypeNum] = &d
	ts.byChar[d.Char] = &d
	return &d, nil
}

// RegisterCastFunc installs the conversion from one registered type to another.
func (ts *TypeSystem) RegisterCastFunc(from, to *Descr, fn CastFunc) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.byNum[from.TypeNum] != from || ts.byNum[to.TypeNum] != to {
		return errs.Unsupported("cannot register cast %s -> %s: type not registered", from, to)
	}
	ts.casts[castKey{from.TypeNum, to.TypeNum}] = fn
	return nil
}

// CastFunc returns the conversion between two types. Identical types copy
// bytes, builtin pairs convert element-wise, everything else needs a
// registered cast.
func (ts *TypeSystem) CastFunc(from, to *Descr) (CastFunc, bool) {
	if from == to {
		size := from.ItemSize
		return func(dst, src []byte, n int) { copy(dst[:n*size], src[:n*size]) }, true
	}

	ts.mu.RLock()
	fn, ok := ts.casts[castKey{from.TypeNum, to.TypeNum}]
	ts.mu.RUnlock()
	if ok {
		return fn, true
	}

	if from.IsBuiltin() && to.IsBuiltin() {
		return ElementwiseCast(from, to), true
	}
	return nil, false
}

// ElementwiseCast converts through float64 using the descriptors' accessors.
// Integers beyond 2^53 lose precision.
func ElementwiseCast(from, to *Descr) CastFunc {
	get, set := from.Funcs.GetItem, to.Funcs.SetItem
	fs, ts := from.ItemSize, to.ItemSize
	return func(dst, src []byte, n int) {
		for i := 0; i < n; i++ {
			set(dst[i*ts:], get(src[i*fs:]))
		}
	}
}

// Cast converts a host buffer to another element type.
func (ts *TypeSystem) Cast(src *RawTensor, to *Descr) (*RawTensor, error) {
	fn, ok := ts.CastFunc(src.DType(), to)
	if !ok {
		return nil, errs.New(errs.KindUnsupportedDtype).
			Phase(errs.PhaseCast).
			Detail("no cast from %s to %s", src.DType(), to).
			Build()
	}

	out, err := NewRaw(src.Shape(), to)
	if err != nil {
		return nil, err
	}
	fn(out.Data(), src.Data(), src.NumElements())
	return out, nil
}

// DescrFromType returns the descriptor for a type number.
func (ts *TypeSystem) DescrFromType(num int) (*Descr, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	d, ok := ts.byNum[num]
	return d, ok
}

// DescrFromChar returns the descriptor for a type code.
func (ts *TypeSystem) DescrFromChar(c byte) (*Descr, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	d, ok := ts.byChar[c]
	return d, ok
}

// NumUserTypes returns how many types have been registered at runtime.
func (ts *TypeSystem) NumUserTypes() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.next - UserDefined
}
