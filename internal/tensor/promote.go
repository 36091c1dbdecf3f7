package tensor

import "github.com/born-ml/lowbit/internal/errs"

// Promote returns the type both operands of a mixed elementwise operation
// are computed in.
//
// Builtin pairs follow the host lattice:
//
//	bool + T            → T
//	int + int           → the wider one; signed+unsigned widens the signed side
//	int + float         → a float wide enough for the integer
//	float + float       → the wider one
//
// Registered floating-point types take part as floats:
//
//	ext + builtin float → the builtin float if it holds ext exactly,
//	                      else the narrowest builtin float holding both
//	ext + other ext     → the narrowest builtin float holding both
//	ext + int           → Promote(int, narrowest builtin float holding ext)
func (ts *TypeSystem) Promote(a, b *Descr) (*Descr, error) {
	switch {
	case a == b:
		return a, nil
	case a.Kind == KindBool:
		return b, nil
	case b.Kind == KindBool:
		return a, nil
	}

	aExt, bExt := !a.IsBuiltin(), !b.IsBuiltin()
	if !aExt && !bExt {
		return promoteBuiltin(a, b), nil
	}
	if (aExt && a.Float == nil) || (bExt && b.Float == nil) {
		return nil, errs.Unsupported("no promotion between %s and %s", a, b)
	}

	if aExt && bExt {
		return narrowestHolding(widest(*a.Float, *b.Float)), nil
	}

	ext, other := a, b
	if bExt {
		ext, other = b, a
	}
	if other.IsFloat() {
		if other.Float.holds(*ext.Float) {
			return other, nil
		}
		return narrowestHolding(widest(*other.Float, *ext.Float)), nil
	}
	return promoteBuiltin(other, narrowestHolding(*ext.Float)), nil
}

func widest(x, y FloatInfo) FloatInfo {
	return FloatInfo{
		ExponentBits: max(x.ExponentBits, y.ExponentBits),
		MantissaBits: max(x.MantissaBits, y.MantissaBits),
	}
}

func narrowestHolding(info FloatInfo) *Descr {
	for _, f := range builtinFloats {
		if f.Float.holds(info) {
			return f
		}
	}
	return Float64
}

func promoteBuiltin(a, b *Descr) *Descr {
	switch {
	case a == b:
		return a
	case a.IsFloat() && b.IsFloat():
		if a.ItemSize >= b.ItemSize {
			return a
		}
		return b
	case a.IsFloat():
		return promoteBuiltin(a, floatForInt(b))
	case b.IsFloat():
		return promoteBuiltin(floatForInt(a), b)
	}

	// Both integers.
	if a.Kind == b.Kind {
		if a.ItemSize >= b.ItemSize {
			return a
		}
		return b
	}
	signed, unsigned := a, b
	if a.Kind == KindUint {
		signed, unsigned = b, a
	}
	if signed.ItemSize > unsigned.ItemSize {
		return signed
	}
	if s := signedOfSize(2 * unsigned.ItemSize); s != nil {
		return s
	}
	return Float64
}

// floatForInt returns the narrowest float holding every value of an integer.
func floatForInt(d *Descr) *Descr {
	switch d.ItemSize {
	case 1:
		return Float16
	case 2:
		return Float32
	default:
		return Float64
	}
}

func signedOfSize(size int) *Descr {
	switch size {
	case 1:
		return Int8
	case 2:
		return Int16
	case 4:
		return Int32
	case 8:
		return Int64
	}
	return nil
}
