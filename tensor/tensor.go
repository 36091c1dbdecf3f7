// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/lowbit/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for Go element types that map to builtin
// descriptors.
type DType = tensor.DType

// Descr describes an element type: its name, type code, size and element
// accessors.
type Descr = tensor.Descr

// FloatInfo is the exponent and mantissa width of a floating-point type.
type FloatInfo = tensor.FloatInfo

// TypeSystem is a table of element types and the casts between them.
type TypeSystem = tensor.TypeSystem

// CastFunc converts packed elements between two types.
type CastFunc = tensor.CastFunc

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Builtin element types.
var (
	Bool    = tensor.Bool
	Int8    = tensor.Int8
	Uint8   = tensor.Uint8
	Int16   = tensor.Int16
	Uint16  = tensor.Uint16
	Int32   = tensor.Int32
	Uint32  = tensor.Uint32
	Int64   = tensor.Int64
	Uint64  = tensor.Uint64
	Float16 = tensor.Float16
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// UserDefined is the first type number handed to registered types.
const UserDefined = tensor.UserDefined

// DefaultTypes returns the process-wide type system.
func DefaultTypes() *TypeSystem {
	return tensor.DefaultTypes()
}

// Promote returns the type a mixed operation on a and b computes in.
func Promote(a, b *Descr) (*Descr, error) {
	return tensor.DefaultTypes().Promote(a, b)
}

// Resolve returns the broadcast shape of a and b.
func Resolve(a, b Shape) (Shape, error) {
	return tensor.Resolve(a, b)
}

// ResolveAll returns the broadcast shape of all shapes.
func ResolveAll(shapes ...Shape) (Shape, error) {
	return tensor.ResolveAll(shapes...)
}
