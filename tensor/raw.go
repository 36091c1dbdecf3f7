// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/lowbit/internal/tensor"
)

// RawTensor is a dense row-major host buffer.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), ItemSize()
//   - Type-checked views via AsFloat32(), AsInt64(), etc.
//   - Element access in float64 via At(), Set() and Float64s()
//   - Deep copies via Clone()
//
// Elements of narrow floating-point types are stored as their packed
// encodings; Float64s decodes them.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
//	data := raw.AsFloat32()  // Type-safe access
//	clone := raw.Clone()     // Independent copy
type RawTensor = tensor.RawTensor

// NewRaw allocates a zeroed host buffer.
func NewRaw(shape Shape, dtype *Descr) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromBytes wraps packed bytes of the given type.
func FromBytes(shape Shape, dtype *Descr, data []byte) (*RawTensor, error) {
	return tensor.FromBytes(shape, dtype, data)
}

// FromSlice copies a Go slice into a host buffer of the matching builtin
// type.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}
