package minifloat

import (
	"encoding/binary"
	"math"

	"golang.org/x/exp/constraints"
)

// Codec converts between a packed format and binary32.
//
// Encoded values are returned in the low bits of a uint16; formats of 8 bits
// or fewer are stored one element per byte, 16-bit formats as two bytes in
// little-endian order.
type Codec interface {
	Name() string
	Bits() int
	ExponentBits() int
	MantissaBits() int
	Encode(v float32) uint16
	Decode(bits uint16) float32
}

// ItemSize returns the storage size of one element in bytes.
func ItemSize(c Codec) int {
	return (c.Bits() + 7) / 8
}

// Load reads one packed element from the start of b.
func Load(c Codec, b []byte) uint16 {
	if ItemSize(c) == 2 {
		return binary.LittleEndian.Uint16(b)
	}
	return uint16(b[0])
}

// Store writes one packed element to the start of b.
func Store(c Codec, b []byte, bits uint16) {
	if ItemSize(c) == 2 {
		binary.LittleEndian.PutUint16(b, bits)
		return
	}
	b[0] = uint8(bits)
}

// EncodeSlice packs src into dst, which must hold len(src)*ItemSize(c) bytes.
func EncodeSlice[T constraints.Float](c Codec, dst []byte, src []T) {
	size := ItemSize(c)
	for i, v := range src {
		Store(c, dst[i*size:], c.Encode(float32(v)))
	}
}

// DecodeSlice unpacks len(dst) elements from src.
func DecodeSlice[T constraints.Float](c Codec, dst []T, src []byte) {
	size := ItemSize(c)
	for i := range dst {
		dst[i] = T(c.Decode(Load(c, src[i*size:])))
	}
}

// Equal reports whether a and b decode to equal values. NaN equals NaN, and
// positive and negative zero are equal.
func Equal(c Codec, a, b uint16) bool {
	x, y := c.Decode(a), c.Decode(b)
	if x != x && y != y {
		return true
	}
	return x == y
}

// Compare orders a and b by value. ok is false when either side is NaN.
func Compare(c Codec, a, b uint16) (cmp int, ok bool) {
	x, y := float64(c.Decode(a)), float64(c.Decode(b))
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

// Formats returns the packed formats in catalogue order, bfloat16 included.
func Formats() []Codec {
	return []Codec{E5M2, E4M3FN, E8M0, BFloat16, E2M3FN, E3M2FN, E2M1FN}
}
