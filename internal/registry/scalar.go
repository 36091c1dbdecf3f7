package registry

import (
	"fmt"
	"math"

	"github.com/born-ml/lowbit/internal/errs"
	"github.com/born-ml/lowbit/internal/minifloat"
	"github.com/born-ml/lowbit/internal/tensor"
)

// ScalarType builds host scalar values of one installed extension type.
type ScalarType struct {
	desc  *TypeDescriptor
	descr *tensor.Descr
}

// Descriptor returns the static descriptor of the scalar type.
func (t *ScalarType) Descriptor() *TypeDescriptor { return t.desc }

// Descr returns the installed host descriptor.
func (t *ScalarType) Descr() *tensor.Descr { return t.descr }

// Name returns the short type name.
func (t *ScalarType) Name() string { return t.desc.Name }

// New converts v to a scalar of this type. Go floats, Go integers and
// scalars of any extension type are accepted.
func (t *ScalarType) New(v any) (Scalar, error) {
	var f float32
	switch x := v.(type) {
	case Scalar:
		f = x.Float32()
	case float32:
		f = x
	case float64:
		f = float32(x)
	case int:
		f = float32(x)
	case int8:
		f = float32(x)
	case int16:
		f = float32(x)
	case int32:
		f = float32(x)
	case int64:
		f = float32(x)
	case uint:
		f = float32(x)
	case uint8:
		f = float32(x)
	case uint16:
		f = float32(x)
	case uint32:
		f = float32(x)
	case uint64:
		f = float32(x)
	case bool:
		if x {
			f = 1
		}
	default:
		return Scalar{}, errs.New(errs.KindUnsupportedDtype).
			Phase(errs.PhaseCast).
			Op(t.desc.Name).
			Detail("cannot convert %T to %s", v, t.desc.Name).
			Build()
	}
	return t.FromFloat32(f), nil
}

// FromFloat32 encodes f with round-to-nearest-even.
func (t *ScalarType) FromFloat32(f float32) Scalar {
	return Scalar{typ: t, bits: t.desc.Codec.Encode(f)}
}

// FromBits wraps an already encoded bit pattern. Bits above the storage
// width are dropped.
func (t *ScalarType) FromBits(bits uint16) Scalar {
	c := t.desc.Codec
	return Scalar{typ: t, bits: bits & uint16(1<<c.Bits()-1)}
}

// Scalar is one value of an extension element type.
// The zero Scalar has no type and reads as zero.
type Scalar struct {
	typ  *ScalarType
	bits uint16
}

// Type returns the scalar's type, nil for the zero Scalar.
func (s Scalar) Type() *ScalarType { return s.typ }

// Bits returns the packed encoding.
func (s Scalar) Bits() uint16 { return s.bits }

// Float32 decodes the value.
func (s Scalar) Float32() float32 {
	if s.typ == nil {
		return 0
	}
	return s.typ.desc.Codec.Decode(s.bits)
}

// Float64 decodes the value.
func (s Scalar) Float64() float64 { return float64(s.Float32()) }

// IsNaN reports whether the value is NaN.
func (s Scalar) IsNaN() bool {
	return math.IsNaN(s.Float64())
}

func (s Scalar) String() string {
	return fmt.Sprintf("%g", s.Float32())
}

// GoString renders the value with its type name, e.g. float8_e4m3fn(1.5).
func (s Scalar) GoString() string {
	name := "scalar"
	if s.typ != nil {
		name = s.typ.desc.Name
	}
	return fmt.Sprintf("%s(%g)", name, s.Float32())
}

// Equal compares by value: NaN equals NaN and signed zeros are equal.
func (s Scalar) Equal(o Scalar) bool {
	x, y := s.Float32(), o.Float32()
	if x != x && y != y {
		return true
	}
	return x == y
}

// Compare orders s and o by value. ok is false when either is NaN.
func (s Scalar) Compare(o Scalar) (cmp int, ok bool) {
	if s.typ != nil && s.typ == o.typ {
		return minifloat.Compare(s.typ.desc.Codec, s.bits, o.bits)
	}
	x, y := s.Float64(), o.Float64()
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return 0, false
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

// Add returns s+o in the type of s.
func (s Scalar) Add(o Scalar) Scalar { return s.with(s.Float32() + o.Float32()) }

// Sub returns s-o in the type of s.
func (s Scalar) Sub(o Scalar) Scalar { return s.with(s.Float32() - o.Float32()) }

// Mul returns s*o in the type of s.
func (s Scalar) Mul(o Scalar) Scalar { return s.with(s.Float32() * o.Float32()) }

// Div returns s/o in the type of s.
func (s Scalar) Div(o Scalar) Scalar { return s.with(s.Float32() / o.Float32()) }

// Neg returns -s.
func (s Scalar) Neg() Scalar { return s.with(-s.Float32()) }

func (s Scalar) with(f float32) Scalar {
	if s.typ == nil {
		return s
	}
	return s.typ.FromFloat32(f)
}
