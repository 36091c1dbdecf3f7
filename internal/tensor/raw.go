package tensor

import (
	"fmt"
	"unsafe"

	"github.com/born-ml/lowbit/internal/errs"
)

// RawTensor is a dense, row-major host buffer: the host array ecosystem's
// view of shape, item size and raw bytes.
//
// Elements of registered types are stored packed, one element per ItemSize
// bytes. Decoding them is an explicit Cast.
type RawTensor struct {
	shape  Shape
	stride []int
	dtype  *Descr
	data   []byte
}

// NewRaw creates a zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype *Descr) (*RawTensor, error) {
	size, err := shape.ByteSize(dtype.ItemSize)
	if err != nil {
		return nil, err
	}
	return &RawTensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		data:   make([]byte, size),
	}, nil
}

// FromBytes wraps data without copying. len(data) must match the shape.
func FromBytes(shape Shape, dtype *Descr, data []byte) (*RawTensor, error) {
	size, err := shape.ByteSize(dtype.ItemSize)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, errs.New(errs.KindInvalidShape).
			Detail("shape %v of %s needs %d bytes, got %d", shape, dtype, size, len(data)).
			Build()
	}
	return &RawTensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		data:   data,
	}, nil
}

// FromSlice copies data into a new RawTensor of the matching builtin type.
//
// Example:
//
//	raw, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	raw, err := NewRaw(shape, descrOf[T]())
	if err != nil {
		return nil, err
	}
	if len(data) != raw.NumElements() {
		return nil, errs.New(errs.KindInvalidShape).
			Detail("shape %v needs %d elements, got %d", shape, raw.NumElements(), len(data)).
			Build()
	}
	if len(data) > 0 {
		//nolint:gosec // unsafe.Slice for zero-copy view of the source slice
		src := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(raw.data))
		copy(raw.data, src)
	}
	return raw, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's element strides (row-major).
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's element type.
func (r *RawTensor) DType() *Descr {
	return r.dtype
}

// ItemSize returns the element size in bytes.
func (r *RawTensor) ItemSize() int {
	return r.dtype.ItemSize
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		data:   data,
	}
}

// At returns element i converted to float64 through the type's accessor.
func (r *RawTensor) At(i int) float64 {
	return r.dtype.Funcs.GetItem(r.data[i*r.dtype.ItemSize:])
}

// Set stores v at element i through the type's accessor.
func (r *RawTensor) Set(i int, v float64) {
	r.dtype.Funcs.SetItem(r.data[i*r.dtype.ItemSize:], v)
}

// Float64s returns all elements converted through the type's accessor.
func (r *RawTensor) Float64s() []float64 {
	out := make([]float64, r.NumElements())
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

func asSlice[T DType](r *RawTensor) []T {
	if want := descrOf[T](); r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*T)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 { return asSlice[float32](r) }

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 { return asSlice[float64](r) }

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 { return asSlice[int32](r) }

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 { return asSlice[int64](r) }

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 { return asSlice[uint8](r) }

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool { return asSlice[bool](r) }

// Float32Slice views the first n float32 values packed in b without copying.
func Float32Slice(b []byte, n int) []float32 {
	if n == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy view, callers size b
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}

// Reshape returns a copy of r with a new shape holding the same elements.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	shape, err := shape.Reshape(r.NumElements())
	if err != nil {
		return nil, err
	}
	out := r.Clone()
	out.shape = shape
	out.stride = shape.ComputeStrides()
	return out, nil
}
