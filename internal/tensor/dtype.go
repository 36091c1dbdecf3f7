// Package tensor models the host side of the array library: element type
// descriptors and the type system they live in, shapes with broadcasting,
// and raw host buffers.
package tensor

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// DType is a constraint for Go element types with a builtin descriptor.
type DType interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// Type numbers.
const (
	// NoType marks a type that has not been registered.
	NoType = -1
	// UserDefined is the first type number handed to registered types.
	UserDefined = 256
)

// Kind codes.
const (
	KindBool  byte = 'b'
	KindInt   byte = 'i'
	KindUint  byte = 'u'
	KindFloat byte = 'f'
)

// ByteOrderNative marks host byte order.
const ByteOrderNative byte = '='

// FloatInfo describes the layout of a binary floating-point kind.
type FloatInfo struct {
	ExponentBits int
	MantissaBits int
}

// holds reports whether every value of o is exactly representable in f.
func (f FloatInfo) holds(o FloatInfo) bool {
	return f.ExponentBits >= o.ExponentBits && f.MantissaBits >= o.MantissaBits
}

// ArrFuncs are the element accessors a descriptor provides to the type system.
// Slices passed in start at the element and are at least ItemSize long.
type ArrFuncs struct {
	GetItem func(b []byte) float64
	SetItem func(b []byte, v float64)
	// Compare orders two elements; unordered pairs compare as 0.
	Compare func(a, b []byte) int
}

// Descr describes one element type.
type Descr struct {
	Name      string
	Kind      byte
	Char      byte
	ByteOrder byte
	ItemSize  int
	Alignment int
	TypeNum   int
	Float     *FloatInfo
	Funcs     ArrFuncs
}

// String returns the type name.
func (d *Descr) String() string {
	if d == nil {
		return "<nil>"
	}
	return d.Name
}

// IsBuiltin reports whether d is one of the host's own types.
func (d *Descr) IsBuiltin() bool {
	return d.TypeNum >= 0 && d.TypeNum < UserDefined
}

// IsFloat reports whether d is a floating-point kind.
func (d *Descr) IsFloat() bool {
	return d.Kind == KindFloat
}

// Builtin descriptors. Type numbers and type codes follow the host library.
var (
	Bool    = builtin("bool", KindBool, '?', 1, 0, nil)
	Int8    = builtin("int8", KindInt, 'b', 1, 1, nil)
	Uint8   = builtin("uint8", KindUint, 'B', 1, 2, nil)
	Int16   = builtin("int16", KindInt, 'h', 2, 3, nil)
	Uint16  = builtin("uint16", KindUint, 'H', 2, 4, nil)
	Int32   = builtin("int32", KindInt, 'i', 4, 5, nil)
	Uint32  = builtin("uint32", KindUint, 'I', 4, 6, nil)
	Int64   = builtin("int64", KindInt, 'q', 8, 9, nil)
	Uint64  = builtin("uint64", KindUint, 'Q', 8, 10, nil)
	Float32 = builtin("float32", KindFloat, 'f', 4, 11, &FloatInfo{8, 23})
	Float64 = builtin("float64", KindFloat, 'd', 8, 12, &FloatInfo{11, 52})
	Float16 = builtin("float16", KindFloat, 'e', 2, 23, &FloatInfo{5, 10})
)

// builtinFloats is ordered narrowest first.
var builtinFloats = []*Descr{Float16, Float32, Float64}

// reservedChars are host type codes that registered types may not reuse,
// including codes of host types this package does not model.
const reservedChars = "?bBhHiIlLqQpPefdgFDGSUVOMmca"

// Builtins returns the builtin descriptors in type-number order.
func Builtins() []*Descr {
	return []*Descr{Bool, Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64, Float32, Float64, Float16}
}

func builtin(name string, kind, char byte, size, num int, info *FloatInfo) *Descr {
	d := &Descr{
		Name:      name,
		Kind:      kind,
		Char:      char,
		ByteOrder: ByteOrderNative,
		ItemSize:  size,
		Alignment: size,
		TypeNum:   num,
		Float:     info,
	}
	d.Funcs = builtinFuncs(d)
	return d
}

func builtinFuncs(d *Descr) ArrFuncs {
	var get func([]byte) float64
	var set func([]byte, float64)

	le := binary.LittleEndian
	switch d.Name {
	case "bool":
		get = func(b []byte) float64 {
			if b[0] != 0 {
				return 1
			}
			return 0
		}
		set = func(b []byte, v float64) {
			b[0] = 0
			if v != 0 {
				b[0] = 1
			}
		}
	case "int8":
		get = func(b []byte) float64 { return float64(int8(b[0])) }
		set = func(b []byte, v float64) { b[0] = uint8(int8(toInt64(v))) }
	case "uint8":
		get = func(b []byte) float64 { return float64(b[0]) }
		set = func(b []byte, v float64) { b[0] = uint8(toUint64(v)) }
	case "int16":
		get = func(b []byte) float64 { return float64(int16(le.Uint16(b))) }
		set = func(b []byte, v float64) { le.PutUint16(b, uint16(toInt64(v))) }
	case "uint16":
		get = func(b []byte) float64 { return float64(le.Uint16(b)) }
		set = func(b []byte, v float64) { le.PutUint16(b, uint16(toUint64(v))) }
	case "int32":
		get = func(b []byte) float64 { return float64(int32(le.Uint32(b))) }
		set = func(b []byte, v float64) { le.PutUint32(b, uint32(toInt64(v))) }
	case "uint32":
		get = func(b []byte) float64 { return float64(le.Uint32(b)) }
		set = func(b []byte, v float64) { le.PutUint32(b, uint32(toUint64(v))) }
	case "int64":
		get = func(b []byte) float64 { return float64(int64(le.Uint64(b))) }
		set = func(b []byte, v float64) { le.PutUint64(b, uint64(toInt64(v))) }
	case "uint64":
		get = func(b []byte) float64 { return float64(le.Uint64(b)) }
		set = func(b []byte, v float64) { le.PutUint64(b, toUint64(v)) }
	case "float16":
		get = func(b []byte) float64 { return float64(float16.Frombits(le.Uint16(b)).Float32()) }
		set = func(b []byte, v float64) { le.PutUint16(b, float16.Fromfloat32(float32(v)).Bits()) }
	case "float32":
		get = func(b []byte) float64 { return float64(math.Float32frombits(le.Uint32(b))) }
		set = func(b []byte, v float64) { le.PutUint32(b, math.Float32bits(float32(v))) }
	case "float64":
		get = func(b []byte) float64 { return math.Float64frombits(le.Uint64(b)) }
		set = func(b []byte, v float64) { le.PutUint64(b, math.Float64bits(v)) }
	}

	return ArrFuncs{
		GetItem: get,
		SetItem: set,
		Compare: func(a, b []byte) int { return compareValues(get(a), get(b)) },
	}
}

func compareValues(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// toInt64 truncates toward zero and clamps, so conversions stay defined for
// NaN and out-of-range values.
func toInt64(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

func toUint64(v float64) uint64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return uint64(toInt64(v))
	case v >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(v)
}

// descrOf returns the builtin descriptor for a Go element type.
func descrOf[T DType]() *Descr {
	var zero T
	switch any(zero).(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("tensor: unsupported element type")
	}
}
