// Package minifloat implements bit-level codecs between narrow floating-point
// formats (8, 6 and 4 bit minifloats, bfloat16) and IEEE-754 binary32.
package minifloat

import (
	"fmt"
	"math"
)

// Special selects how a format spends its reserved encodings.
type Special uint8

const (
	// IEEE reserves the all-ones exponent for infinities and NaNs.
	IEEE Special = iota
	// FiniteNaN has no infinity; only the all-ones magnitude is NaN.
	FiniteNaN
	// Finite has neither infinity nor NaN. Out-of-range inputs saturate.
	Finite
	// ScaleOnly is an unsigned, exponent-only power-of-two scale. 0xFF is NaN.
	ScaleOnly
)

// String returns the policy name.
func (s Special) String() string {
	switch s {
	case IEEE:
		return "ieee"
	case FiniteNaN:
		return "finite-nan"
	case Finite:
		return "finite"
	case ScaleOnly:
		return "scale-only"
	default:
		return "unknown"
	}
}

// Format describes one narrow floating-point format of at most 8 bits.
//
// Layout (most significant bit first):
//
//	[sign (1)] [exponent (E)] [mantissa (M)]
//
// ScaleOnly formats carry no sign and no mantissa. Normal values decode to
// (1 + m/2^M) * 2^(e-bias), subnormals (e == 0) to m * 2^(1-bias-M).
//
// Format is a value type and is safe for concurrent use.
type Format struct {
	name    string
	bits    uint
	exp     uint
	man     uint
	bias    int
	special Special
}

// NewFormat returns a format descriptor. It panics if the bit counts are
// inconsistent, since formats are declared once at package level.
func NewFormat(name string, bits, exp, man uint, bias int, special Special) Format {
	want := exp + man + 1
	if special == ScaleOnly {
		want = exp + man
	}
	if bits > 8 || bits != want || exp == 0 {
		panic(fmt.Sprintf("minifloat: invalid layout for %s: bits=%d exp=%d man=%d", name, bits, exp, man))
	}
	if special == IEEE && man == 0 {
		panic(fmt.Sprintf("minifloat: %s needs a mantissa bit to encode NaN", name))
	}
	return Format{name: name, bits: bits, exp: exp, man: man, bias: bias, special: special}
}

// Predefined formats.
var (
	E5M2   = NewFormat("float8_e5m2", 8, 5, 2, 15, IEEE)
	E4M3FN = NewFormat("float8_e4m3fn", 8, 4, 3, 7, FiniteNaN)
	E8M0   = NewFormat("float8_e8m0", 8, 8, 0, 127, ScaleOnly)
	E2M3FN = NewFormat("float6_e2m3fn", 6, 2, 3, 1, Finite)
	E3M2FN = NewFormat("float6_e3m2fn", 6, 3, 2, 3, Finite)
	E2M1FN = NewFormat("float4_e2m1fn", 4, 2, 1, 1, Finite)
)

// Name returns the canonical format name.
func (f Format) Name() string { return f.name }

// Bits returns the number of significant storage bits.
func (f Format) Bits() int { return int(f.bits) }

// ExponentBits returns the exponent width.
func (f Format) ExponentBits() int { return int(f.exp) }

// MantissaBits returns the explicit mantissa width.
func (f Format) MantissaBits() int { return int(f.man) }

// Bias returns the exponent bias.
func (f Format) Bias() int { return f.bias }

// Special returns the special-value policy.
func (f Format) Special() Special { return f.special }

// HasSign reports whether the format has a sign bit.
func (f Format) HasSign() bool { return f.special != ScaleOnly }

// HasInf reports whether the format encodes infinities.
func (f Format) HasInf() bool { return f.special == IEEE }

// HasNaN reports whether the format encodes NaN.
func (f Format) HasNaN() bool { return f.special != Finite }

// Max returns the largest finite value.
func (f Format) Max() float32 { return f.Decode(uint16(f.maxCode())) }

// SmallestNonzero returns the smallest positive value.
func (f Format) SmallestNonzero() float32 {
	if f.special == ScaleOnly {
		return f.Decode(0)
	}
	return f.Decode(1)
}

// String implements fmt.Stringer.
func (f Format) String() string { return f.name }

func (f Format) mask() uint8 { return uint8(1<<f.bits - 1) }

func (f Format) magMask() uint8 {
	if f.special == ScaleOnly {
		return f.mask()
	}
	return uint8(1<<(f.bits-1) - 1)
}

func (f Format) signBit() uint8 {
	if f.special == ScaleOnly {
		return 0
	}
	return 1 << (f.bits - 1)
}

func (f Format) infCode() uint8 { return uint8((1<<f.exp - 1) << f.man) }

func (f Format) nanCode() uint8 {
	switch f.special {
	case IEEE:
		return f.infCode() | 1<<(f.man-1)
	case FiniteNaN, ScaleOnly:
		return f.magMask()
	default:
		return f.maxCode()
	}
}

func (f Format) maxCode() uint8 {
	switch f.special {
	case IEEE:
		return f.infCode() - 1
	case FiniteNaN, ScaleOnly:
		return f.magMask() - 1
	default:
		return f.magMask()
	}
}

// overflowCode is where finite values beyond Max land.
func (f Format) overflowCode() uint8 {
	switch f.special {
	case IEEE:
		return f.infCode()
	case FiniteNaN:
		return f.nanCode()
	default:
		return f.maxCode()
	}
}

// Encode converts v to the format, rounding to nearest even.
//
// Out-of-range values become infinity for IEEE formats, NaN for FiniteNaN
// formats and the signed maximum for Finite formats. Finite formats also
// map NaN and infinities to the signed maximum. ScaleOnly formats encode
// negative inputs and NaN as NaN (0xFF), zero as 0x00 and +Inf as 0xFE.
func (f Format) Encode(v float32) uint16 {
	return uint16(f.encode(float64(v)))
}

func (f Format) encode(x float64) uint8 {
	if f.special == ScaleOnly {
		return f.encodeScale(x)
	}

	var sign uint8
	if math.Signbit(x) {
		sign = f.signBit()
		x = -x
	}

	switch {
	case math.IsNaN(x):
		return sign | f.nanCode()
	case math.IsInf(x, 0):
		return sign | f.overflowCode()
	case x == 0:
		return sign
	}

	code := f.quantize(x)
	if code > uint64(f.maxCode()) {
		return sign | f.overflowCode()
	}
	return sign | uint8(code)
}

// quantize returns the magnitude code of a positive finite x. Results above
// maxCode signal overflow.
func (f Format) quantize(x float64) uint64 {
	frac, e := math.Frexp(x)
	e-- // x = (2*frac) * 2^e with 2*frac in [1, 2)

	minExp := 1 - f.bias
	if e < minExp {
		// Subnormal grid. Rounding up to 2^M yields the smallest normal code.
		return uint64(math.RoundToEven(math.Ldexp(x, int(f.man)-minExp)))
	}

	m := math.RoundToEven(math.Ldexp(2*frac-1, int(f.man)))
	if m == math.Ldexp(1, int(f.man)) {
		m = 0
		e++
	}

	field := e + f.bias
	if field > 1<<f.exp-1 {
		return 1 << (f.exp + f.man)
	}
	return uint64(field)<<f.man | uint64(m)
}

func (f Format) encodeScale(x float64) uint8 {
	switch {
	case math.IsNaN(x):
		return f.nanCode()
	case x == 0:
		return 0
	case x < 0:
		return f.nanCode()
	case math.IsInf(x, 1):
		return f.maxCode()
	}

	frac, e := math.Frexp(x)
	e--
	r := 2 * frac
	if r > 1.5 || (r == 1.5 && (e+f.bias)&1 == 1) {
		e++
	}

	code := e + f.bias
	switch {
	case code < 0:
		return 0
	case code > int(f.maxCode()):
		return f.maxCode()
	}
	return uint8(code)
}

// Decode converts bits to binary32. Bits above the format width are ignored,
// so every input has a defined result.
func (f Format) Decode(bits uint16) float32 {
	b := uint8(bits) & f.mask()

	if f.special == ScaleOnly {
		if b == f.nanCode() {
			return float32(math.NaN())
		}
		return float32(math.Ldexp(1, int(b)-f.bias))
	}

	neg := b&f.signBit() != 0
	mag := b & f.magMask()
	field := int(mag >> f.man)
	m := mag & uint8(1<<f.man-1)

	switch f.special {
	case IEEE:
		if field == 1<<f.exp-1 {
			if m != 0 {
				return float32(math.NaN())
			}
			if neg {
				return float32(math.Inf(-1))
			}
			return float32(math.Inf(1))
		}
	case FiniteNaN:
		if mag == f.magMask() {
			return float32(math.NaN())
		}
	}

	var v float64
	if field == 0 {
		v = math.Ldexp(float64(m), 1-f.bias-int(f.man))
	} else {
		v = math.Ldexp(1+math.Ldexp(float64(m), -int(f.man)), field-f.bias)
	}
	if neg {
		v = -v
	}
	return float32(v)
}

// IsNaN reports whether bits encode NaN.
func (f Format) IsNaN(bits uint16) bool {
	return math.IsNaN(float64(f.Decode(bits)))
}
