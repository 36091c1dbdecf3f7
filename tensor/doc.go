// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the host side of lowbit: shapes, element type
// descriptors and dense host buffers.
//
// # Overview
//
// Host buffers are the staging area between Go slices and device arrays:
//   - RawTensor holds a shape, an element type and packed bytes
//   - Descr describes an element type, builtin or registered at runtime
//   - TypeSystem converts buffers between element types
//   - Resolve computes NumPy-style broadcast shapes
//
// # Basic Usage
//
//	raw, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	half, _ := tensor.DefaultTypes().Cast(raw, tensor.Float16)
//	fmt.Println(half.Float64s()) // [1 2 3 4]
//
// # Element Types
//
// The builtin types are bool, the signed and unsigned integers from 8 to
// 64 bits, and float16, float32 and float64. The narrow floating-point types
// of package dtypes join them once registered.
//
// # Broadcasting
//
// Shapes are aligned at their rightmost dimension. Aligned sizes must be
// equal or one of them must be 1:
//
//	(3, 1, 5) + (1, 4, 5) → (3, 4, 5)
//	(5,)      + (3, 5)    → (3, 5)
//	(3,)      + (4,)      → error
package tensor
