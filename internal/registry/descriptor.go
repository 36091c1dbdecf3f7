package registry

import (
	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/minifloat"
	"github.com/born-ml/lowbit/internal/tensor"
)

// Namespace prefixes qualified type names.
const Namespace = "lowbit.dtypes"

// TypeDescriptor is the static metadata of one extension element type.
// Descriptors are declared once and never mutated; the registry keys on their
// identity.
type TypeDescriptor struct {
	Name          string
	QualifiedName string
	Doc           string
	Kind          byte
	TypeChar      byte
	ByteOrder     byte
	ItemSize      int
	Alignment     int
	DeviceType    device.DataType
	Codec         minifloat.Codec
}

// NewDescriptor builds a floating-point descriptor for codec.
func NewDescriptor(codec minifloat.Codec, char byte, dt device.DataType, doc string) *TypeDescriptor {
	size := minifloat.ItemSize(codec)
	return &TypeDescriptor{
		Name:          codec.Name(),
		QualifiedName: Namespace + "." + codec.Name(),
		Doc:           doc,
		Kind:          tensor.KindFloat,
		TypeChar:      char,
		ByteOrder:     tensor.ByteOrderNative,
		ItemSize:      size,
		Alignment:     size,
		DeviceType:    dt,
		Codec:         codec,
	}
}

// The extension type catalogue.
var (
	Float8E5M2   = NewDescriptor(minifloat.E5M2, '5', device.Float8E5M2, "Float8 E5M2 floating-point values")
	Float8E4M3FN = NewDescriptor(minifloat.E4M3FN, '6', device.Float8E4M3FN, "Float8 E4M3FN floating-point values")
	Float8E8M0   = NewDescriptor(minifloat.E8M0, '7', device.Float8E8M0, "Float8 E8M0 floating-point values")
	BFloat16     = NewDescriptor(minifloat.BFloat16, '8', device.BFloat16, "BFloat16 floating-point values")
	Float6E2M3FN = NewDescriptor(minifloat.E2M3FN, '9', device.Float6E2M3, "Float6 E2M3FN floating-point values")
	Float6E3M2FN = NewDescriptor(minifloat.E3M2FN, 'A', device.Float6E3M2, "Float6 E3M2FN floating-point values")
	Float4E2M1FN = NewDescriptor(minifloat.E2M1FN, 'C', device.Float4E2M1, "Float4 E2M1FN floating-point values")
)

// Catalogue returns every extension descriptor in registration order.
func Catalogue() []*TypeDescriptor {
	return []*TypeDescriptor{
		Float8E5M2, Float8E4M3FN, Float8E8M0, BFloat16,
		Float6E2M3FN, Float6E3M2FN, Float4E2M1FN,
	}
}

// descr builds the host descriptor prototype whose accessors go through the
// codec.
func (d *TypeDescriptor) descr() tensor.Descr {
	c := d.Codec
	return tensor.Descr{
		Name:      d.Name,
		Kind:      d.Kind,
		Char:      d.TypeChar,
		ByteOrder: d.ByteOrder,
		ItemSize:  d.ItemSize,
		Alignment: d.Alignment,
		Float: &tensor.FloatInfo{
			ExponentBits: c.ExponentBits(),
			MantissaBits: c.MantissaBits(),
		},
		Funcs: tensor.ArrFuncs{
			GetItem: func(b []byte) float64 {
				return float64(c.Decode(minifloat.Load(c, b)))
			},
			SetItem: func(b []byte, v float64) {
				minifloat.Store(c, b, c.Encode(float32(v)))
			},
			Compare: func(a, b []byte) int {
				cmp, _ := minifloat.Compare(c, minifloat.Load(c, a), minifloat.Load(c, b))
				return cmp
			},
		},
	}
}
