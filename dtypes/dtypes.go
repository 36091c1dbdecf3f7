// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dtypes provides the narrow floating-point element types:
// float8 (e5m2, e4m3fn, e8m0), bfloat16, float6 (e2m3fn, e3m2fn) and float4
// (e2m1fn).
//
// Types must be registered before arrays of them can be created. Init
// registers all of them; registering twice is harmless.
//
// Example:
//
//	if err := dtypes.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	v, _ := dtypes.Float8E4M3FN.Scalar().New(0.3)
//	fmt.Printf("%#v\n", v) // float8_e4m3fn(0.3125)
package dtypes

import (
	"github.com/born-ml/lowbit/internal/minifloat"
	"github.com/born-ml/lowbit/internal/registry"
	"github.com/born-ml/lowbit/internal/tensor"
)

// Codec encodes float32 values to a packed format and back.
type Codec = minifloat.Codec

// Descriptor is the static metadata of one extension type.
type Descriptor = registry.TypeDescriptor

// Handle is the registration record of a descriptor.
type Handle = registry.Handle

// Scalar is one value of an extension type.
type Scalar = registry.Scalar

// ScalarType builds scalars of one extension type.
type ScalarType = registry.ScalarType

// Type is an extension element type.
type Type struct {
	desc *registry.TypeDescriptor
}

// The extension types.
var (
	Float8E5M2   = Type{registry.Float8E5M2}
	Float8E4M3FN = Type{registry.Float8E4M3FN}
	Float8E8M0   = Type{registry.Float8E8M0}
	BFloat16     = Type{registry.BFloat16}
	Float6E2M3FN = Type{registry.Float6E2M3FN}
	Float6E3M2FN = Type{registry.Float6E3M2FN}
	Float4E2M1FN = Type{registry.Float4E2M1FN}
)

// All returns every extension type in registration order.
func All() []Type {
	return []Type{
		Float8E5M2, Float8E4M3FN, Float8E8M0, BFloat16,
		Float6E2M3FN, Float6E3M2FN, Float4E2M1FN,
	}
}

// ByName finds an extension type by its short or qualified name.
func ByName(name string) (Type, bool) {
	for _, t := range All() {
		if t.desc.Name == name || t.desc.QualifiedName == name {
			return t, true
		}
	}
	return Type{}, false
}

// Init registers every extension type.
func Init() error {
	return registry.Init()
}

// IsFullyRegistered reports whether every extension type is registered.
func IsFullyRegistered() bool {
	return registry.IsFullyRegistered()
}

// Name returns the short name, e.g. "float8_e4m3fn".
func (t Type) Name() string { return t.desc.Name }

// String implements fmt.Stringer.
func (t Type) String() string { return t.desc.Name }

// Descriptor returns the static descriptor.
func (t Type) Descriptor() *Descriptor { return t.desc }

// Codec returns the packed format.
func (t Type) Codec() Codec { return t.desc.Codec }

// Register installs the type and returns its handle.
func (t Type) Register() (Handle, error) {
	return registry.Register(t.desc)
}

// Registered reports whether the type is installed.
func (t Type) Registered() bool {
	return registry.Lookup(t.desc).Registered()
}

// Descr returns the host element descriptor, registering the type first if
// needed.
func (t Type) Descr() (*tensor.Descr, error) {
	h, err := t.Register()
	if err != nil {
		return nil, err
	}
	return h.Descr, nil
}

// Scalar returns the scalar builder of the type. It panics if the type
// cannot be registered.
func (t Type) Scalar() *ScalarType {
	h, err := t.Register()
	if err != nil {
		panic(err)
	}
	return h.Scalar
}

// Encode packs v.
func (t Type) Encode(v float32) uint16 { return t.desc.Codec.Encode(v) }

// Decode unpacks bits.
func (t Type) Decode(bits uint16) float32 { return t.desc.Codec.Decode(bits) }

// EncodeSlice packs src into dst, which must hold len(src) elements.
func EncodeSlice(t Type, dst []byte, src []float32) {
	minifloat.EncodeSlice(t.desc.Codec, dst, src)
}

// DecodeSlice unpacks len(dst) elements from src.
func DecodeSlice(t Type, dst []float32, src []byte) {
	minifloat.DecodeSlice(t.desc.Codec, dst, src)
}
