package tensor

import (
	"math"

	"github.com/born-ml/lowbit/internal/errs"
)

// Shape represents the dimensions of an array. An empty shape is a scalar.
// Zero-sized dimensions are allowed; negative ones are not.
type Shape []int

// NumElements returns the total number of elements without overflow checks.
// Use Size for shapes that have not been validated.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is non-negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return errs.InvalidShape(s, i)
		}
	}
	return nil
}

// Size returns the element count, failing on negative dimensions or if the
// product does not fit in an int.
func (s Shape) Size() (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	n := 1
	for _, dim := range s {
		if dim == 0 {
			return 0, nil
		}
	}
	for _, dim := range s {
		if n > math.MaxInt/dim {
			return 0, errs.ShapeOverflow(s, 1)
		}
		n *= dim
	}
	return n, nil
}

// ByteSize returns Size() * itemSize with overflow checks.
func (s Shape) ByteSize(itemSize int) (int, error) {
	n, err := s.Size()
	if err != nil {
		return 0, err
	}
	if itemSize > 0 && n > math.MaxInt/itemSize {
		return 0, errs.ShapeOverflow(s, itemSize)
	}
	return n * itemSize, nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major element strides for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Resolve computes the broadcast shape of a and b.
//
// Rules:
//  1. Shapes are aligned at their rightmost dimension.
//  2. An aligned pair is compatible if the sizes are equal or one of them is 1;
//     the output takes the non-1 size.
//  3. Dimensions present only in the longer shape are carried through.
//
// Examples:
//
//	(3, 1, 5) + (1, 4, 5) → (3, 4, 5)
//	(5,)      + (3, 5)    → (3, 5)
//	(3,)      + ()        → (3,)
//	(3,)      + (4,)      → BroadcastIncompatible
func Resolve(a, b Shape) (Shape, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)

	for i := 1; i <= n; i++ {
		aDim, bDim := 1, 1
		if i <= len(a) {
			aDim = a[len(a)-i]
		}
		if i <= len(b) {
			bDim = b[len(b)-i]
		}

		switch {
		case aDim < 0 || bDim < 0:
			if aDim < 0 {
				return nil, errs.InvalidShape(a, len(a)-i)
			}
			return nil, errs.InvalidShape(b, len(b)-i)
		case aDim == bDim, bDim == 1:
			out[n-i] = aDim
		case aDim == 1:
			out[n-i] = bDim
		default:
			return nil, errs.New(errs.KindBroadcastIncompatible).
				Phase(errs.PhaseShape).
				Detail("shapes %v and %v are not broadcastable: %d vs %d at axis -%d", a, b, aDim, bDim, i).
				Build()
		}
	}

	return out, nil
}

// ResolveAll folds Resolve over any number of shapes. No shapes yield a scalar.
func ResolveAll(shapes ...Shape) (Shape, error) {
	out := Shape{}
	for _, s := range shapes {
		var err error
		if out, err = Resolve(out, s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// BroadcastStrides returns element strides for reading an array of shape in
// as if it had shape out. Broadcast and padded dimensions get stride 0.
func BroadcastStrides(in, out Shape) []int {
	strides := make([]int, len(out))
	offset := len(out) - len(in)
	orig := in.ComputeStrides()

	for i := range out {
		j := i - offset
		if j >= 0 && in[j] != 1 {
			strides[i] = orig[j]
		}
	}
	return strides
}

// FlatIndex maps a flat row-major index over outStrides to the element offset
// given by inStrides.
func FlatIndex(idx int, outStrides, inStrides []int) int {
	flat := 0
	for i, s := range outStrides {
		if s == 0 {
			continue
		}
		coord := idx / s
		idx %= s
		flat += coord * inStrides[i]
	}
	return flat
}

// Reshape returns the shape s resolves to for an array of n elements.
// At most one dimension may be -1; it is inferred from the others.
func (s Shape) Reshape(n int) (Shape, error) {
	inferIdx := -1
	product := 1
	for i, dim := range s {
		switch {
		case dim == -1:
			if inferIdx >= 0 {
				return nil, errs.New(errs.KindInvalidShape).
					Phase(errs.PhaseShape).
					Detail("shape %v: can only have one -1 dimension", []int(s)).
					Build()
			}
			inferIdx = i
		case dim < 0:
			return nil, errs.InvalidShape(s, i)
		default:
			product *= dim
		}
	}

	out := s.Clone()
	if inferIdx >= 0 {
		if product == 0 || n%product != 0 {
			return nil, errs.New(errs.KindInvalidShape).
				Phase(errs.PhaseShape).
				Detail("cannot infer dimension of %v from %d elements", []int(s), n).
				Build()
		}
		out[inferIdx] = n / product
	}

	if size, err := out.Size(); err != nil {
		return nil, err
	} else if size != n {
		return nil, errs.New(errs.KindInvalidShape).
			Phase(errs.PhaseShape).
			Detail("cannot reshape %d elements to %v (%d elements)", n, []int(out), size).
			Build()
	}
	return out, nil
}
