package minifloat

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes/bfloat16"
)

// BFloat16 is the 16-bit brain float codec: the top half of a binary32.
var BFloat16 Codec = bfloat16Codec{}

type bfloat16Codec struct{}

func (bfloat16Codec) Name() string      { return "bfloat16" }
func (bfloat16Codec) Bits() int         { return 16 }
func (bfloat16Codec) ExponentBits() int { return 8 }
func (bfloat16Codec) MantissaBits() int { return 7 }

// Encode rounds to nearest even. NaN stays quiet so that payloads living in
// the dropped half never turn into infinity.
func (bfloat16Codec) Encode(v float32) uint16 {
	bits := math.Float32bits(v)
	if v != v {
		return uint16(bits>>16) | 0x7FC0
	}
	bits += 0x7FFF + (bits>>16)&1
	return uint16(bfloat16.BFloat16(bits >> 16))
}

func (bfloat16Codec) Decode(bits uint16) float32 {
	return bfloat16.BFloat16(bits).Float32()
}
