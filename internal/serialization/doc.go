// Package serialization reads and writes host arrays in the SafeTensors
// format, including the packed narrow floating-point types.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON, space padded to 8 bytes]
//	  [Tensor data: raw bytes, in header order]
//
// Extension types map to the SafeTensors names BF16, F8_E5M2, F8_E4M3,
// F8_E8M0 and F4. F4 is stored two elements per byte, the even element in
// the low nibble. The six-bit types have no byte-per-element encoding and
// are rejected.
//
// Files written here carry a SHA-256 of the data section in the
// "lowbit.sha256" metadata key; readers verify it when present.
//
// Example usage:
//
//	err := serialization.WriteFile("weights.safetensors", map[string]*tensor.RawTensor{
//	    "w": packed,
//	}, nil)
//
//	f, err := serialization.ReadFile("weights.safetensors")
//	w := f.Tensors["w"]
package serialization
