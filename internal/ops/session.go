// Package ops exposes the operator surface over device arrays: elementwise
// math, casts and array creation, each run through the dispatcher.
package ops

import (
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/lowbit/internal/array"
	"github.com/born-ml/lowbit/internal/device/simdev"
	"github.com/born-ml/lowbit/internal/dispatch"
	"github.com/born-ml/lowbit/internal/errs"
	"github.com/born-ml/lowbit/internal/kernels"
	"github.com/born-ml/lowbit/internal/tensor"
)

// Session runs operators on one device.
type Session struct {
	dev  *simdev.Device
	disp *dispatch.Dispatcher
	lib  *kernels.Library
}

// NewSession binds a dispatcher and the reference kernels to dev.
func NewSession(dev *simdev.Device, lib *kernels.Library, opts ...dispatch.Option) *Session {
	if lib == nil {
		lib = kernels.New(dev)
	}
	return &Session{dev: dev, disp: dispatch.New(dev, opts...), lib: lib}
}

// Device returns the session's device.
func (s *Session) Device() *simdev.Device { return s.dev }

// Dispatcher returns the session's dispatcher.
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.disp }

// Apply runs the named binding over inputs. A nil dtype means the promoted
// input type, or bool for comparisons.
func (s *Session) Apply(name string, dtype *tensor.Descr, inputs ...*array.Array) (*array.Array, error) {
	b, ok := Lookup(name)
	if !ok {
		return nil, errs.New(errs.KindOperatorQueryFailure).
			Op(name).
			Phase(errs.PhaseShape).
			Detail("unknown operator").
			Build()
	}
	if len(inputs) != b.Arity {
		return nil, errs.New(errs.KindOperatorQueryFailure).
			Op(name).
			Phase(errs.PhaseShape).
			Detail("expected %d inputs, got %d", b.Arity, len(inputs)).
			Build()
	}
	if dtype == nil && b.BoolOut {
		dtype = tensor.Bool
	}
	return s.disp.Nary(name, b.Operator(s.lib), inputs, dtype)
}

// Add returns a + alpha*b.
func (s *Session) Add(a, b *array.Array, alpha float64) (*array.Array, error) {
	return s.disp.Binary("add", s.lib.Add(alpha), a, b, nil)
}

// Sub returns a - b.
func (s *Session) Sub(a, b *array.Array) (*array.Array, error) { return s.Apply("sub", nil, a, b) }

// Mul returns a * b.
func (s *Session) Mul(a, b *array.Array) (*array.Array, error) { return s.Apply("mul", nil, a, b) }

// Div returns a / b.
func (s *Session) Div(a, b *array.Array) (*array.Array, error) { return s.Apply("div", nil, a, b) }

// Maximum returns the elementwise maximum.
func (s *Session) Maximum(a, b *array.Array) (*array.Array, error) {
	return s.Apply("maximum", nil, a, b)
}

// Minimum returns the elementwise minimum.
func (s *Session) Minimum(a, b *array.Array) (*array.Array, error) {
	return s.Apply("minimum", nil, a, b)
}

// Equal returns a bool array of a == b.
func (s *Session) Equal(a, b *array.Array) (*array.Array, error) { return s.Apply("equal", nil, a, b) }

// Less returns a bool array of a < b.
func (s *Session) Less(a, b *array.Array) (*array.Array, error) { return s.Apply("less", nil, a, b) }

// Neg returns -a.
func (s *Session) Neg(a *array.Array) (*array.Array, error) { return s.Apply("neg", nil, a) }

// Abs returns |a|.
func (s *Session) Abs(a *array.Array) (*array.Array, error) { return s.Apply("abs", nil, a) }

// Exp returns e^a.
func (s *Session) Exp(a *array.Array) (*array.Array, error) { return s.Apply("exp", nil, a) }

// Sqrt returns the square root of a.
func (s *Session) Sqrt(a *array.Array) (*array.Array, error) { return s.Apply("sqrt", nil, a) }

// Reciprocal returns 1/a.
func (s *Session) Reciprocal(a *array.Array) (*array.Array, error) {
	return s.Apply("reciprocal", nil, a)
}

// Cast converts a to dtype on the device.
func (s *Session) Cast(a *array.Array, dtype *tensor.Descr) (*array.Array, error) {
	return s.Apply("cast", dtype, a)
}

// Positive returns a copy of a in dtype. A nil or matching dtype makes a
// deep device copy.
func (s *Session) Positive(a *array.Array, dtype *tensor.Descr) (*array.Array, error) {
	if dtype == nil || dtype == a.DType() {
		return a.Clone()
	}
	return s.Cast(a, dtype)
}

// Empty allocates an uninitialized array.
func (s *Session) Empty(shape tensor.Shape, dtype *tensor.Descr) (*array.Array, error) {
	return array.Allocate(s.dev, shape, dtype)
}

// Zeros returns an array filled with zeros.
func (s *Session) Zeros(shape tensor.Shape, dtype *tensor.Descr) (*array.Array, error) {
	return s.Full(shape, dtype, 0)
}

// Ones returns an array filled with ones.
func (s *Session) Ones(shape tensor.Shape, dtype *tensor.Descr) (*array.Array, error) {
	return s.Full(shape, dtype, 1)
}

// Full returns an array filled with value, encoded in dtype.
func (s *Session) Full(shape tensor.Shape, dtype *tensor.Descr, value float64) (*array.Array, error) {
	return s.disp.Nullary("full", s.lib.Fill(value), shape, dtype)
}

// Eye returns an n×m array with ones on the main diagonal.
func (s *Session) Eye(n, m int, dtype *tensor.Descr) (*array.Array, error) {
	return s.disp.Nullary("eye", s.lib.Eye(), tensor.Shape{n, m}, dtype)
}

// Arange returns the values start, start+step, ... below stop (above stop
// for a negative step).
func (s *Session) Arange(start, stop, step float64, dtype *tensor.Descr) (*array.Array, error) {
	if step == 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, errs.New(errs.KindInvalidShape).
			Op("arange").
			Phase(errs.PhaseShape).
			Detail("step must be finite and non-zero, got %g", step).
			Build()
	}
	n := math.Ceil((stop - start) / step)
	if math.IsNaN(n) || n < 0 {
		n = 0
	}
	if n > math.MaxInt32 {
		return nil, errs.New(errs.KindShapeOverflow).
			Op("arange").
			Phase(errs.PhaseShape).
			Detail("%g elements", n).
			Build()
	}
	return s.disp.Nullary("arange", s.lib.Iota(start, step), tensor.Shape{int(n)}, dtype)
}

// Batch runs fn over every input concurrently. On failure the outputs that
// were produced are released and the first error is returned.
func (s *Session) Batch(inputs []*array.Array, fn func(*Session, *array.Array) (*array.Array, error)) ([]*array.Array, error) {
	outs := make([]*array.Array, len(inputs))
	var g errgroup.Group
	for i, in := range inputs {
		g.Go(func() error {
			out, err := fn(s, in)
			outs[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		for _, out := range outs {
			out.Release()
		}
		return nil, err
	}
	return outs, nil
}
