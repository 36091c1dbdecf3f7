package ops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/lowbit/internal/array"
	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/device/simdev"
	"github.com/born-ml/lowbit/internal/errs"
	"github.com/born-ml/lowbit/internal/registry"
	"github.com/born-ml/lowbit/internal/tensor"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	require.NoError(t, registry.Init())
	dev := simdev.New(simdev.DefaultConfig())
	t.Cleanup(func() { assert.NoError(t, dev.Close()) })
	return NewSession(dev, nil)
}

func upload(t *testing.T, s *Session, data []float32, shape tensor.Shape) *array.Array {
	t.Helper()
	raw, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	a, err := array.FromHost(s.Device(), raw, nil)
	require.NoError(t, err)
	t.Cleanup(a.Release)
	return a
}

func host(t *testing.T, a *array.Array) []float64 {
	t.Helper()
	raw, err := a.ToHost()
	require.NoError(t, err)
	return raw.Float64s()
}

func TestBroadcastAddEndToEnd(t *testing.T) {
	s := newSession(t)
	col := []float32{0.5, 1, 2, 4}
	row := []float32{10, -20, 30}
	a := upload(t, s, col, tensor.Shape{4, 1})
	b := upload(t, s, row, tensor.Shape{1, 3})

	out, err := s.Add(a, b, 1)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, tensor.Shape{4, 3}, out.Shape())
	raw, err := out.ToHost()
	require.NoError(t, err)

	want := make([]float32, 0, 12)
	for _, x := range col {
		for _, y := range row {
			want = append(want, x+y)
		}
	}
	assert.Equal(t, want, raw.AsFloat32())

	stats := s.Device().Stats()
	assert.Equal(t, int64(3), stats.ActiveBlocks, "no workspace left behind")
}

func TestApply(t *testing.T) {
	s := newSession(t)
	a := upload(t, s, []float32{1, 4, 9}, tensor.Shape{3})
	b := upload(t, s, []float32{4}, tensor.Shape{})

	for _, tt := range []struct {
		name string
		args []*array.Array
		want []float64
	}{
		{"sub", []*array.Array{a, b}, []float64{-3, 0, 5}},
		{"mul", []*array.Array{a, b}, []float64{4, 16, 36}},
		{"div", []*array.Array{a, b}, []float64{0.25, 1, 2.25}},
		{"maximum", []*array.Array{a, b}, []float64{4, 4, 9}},
		{"minimum", []*array.Array{a, b}, []float64{1, 4, 4}},
		{"equal", []*array.Array{a, b}, []float64{0, 1, 0}},
		{"less", []*array.Array{a, b}, []float64{1, 0, 0}},
		{"neg", []*array.Array{a}, []float64{-1, -4, -9}},
		{"abs", []*array.Array{a}, []float64{1, 4, 9}},
		{"sqrt", []*array.Array{a}, []float64{1, 2, 3}},
		{"reciprocal", []*array.Array{b}, []float64{0.25}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.Apply(tt.name, nil, tt.args...)
			require.NoError(t, err)
			defer out.Release()
			assert.Equal(t, tt.want, host(t, out))
		})
	}

	_, err := s.Apply("matmul", nil, a, b)
	assert.ErrorIs(t, err, errs.ErrOperatorQueryFailure)
	_, err = s.Apply("neg", nil, a, b)
	assert.ErrorIs(t, err, errs.ErrOperatorQueryFailure)
	assert.Len(t, Bindings(), 14)
}

func TestTypedWrappers(t *testing.T) {
	s := newSession(t)
	a := upload(t, s, []float32{-1, 2}, tensor.Shape{2})
	b := upload(t, s, []float32{3, 1}, tensor.Shape{2})

	eq, err := s.Equal(a, a)
	require.NoError(t, err)
	defer eq.Release()
	assert.Same(t, tensor.Bool, eq.DType())

	lt, err := s.Less(a, b)
	require.NoError(t, err)
	defer lt.Release()
	assert.Equal(t, []float64{1, 0}, host(t, lt))

	ex, err := s.Exp(b)
	require.NoError(t, err)
	defer ex.Release()
	assert.InDelta(t, 20.0855369, host(t, ex)[0], 1e-5)

	for _, f := range []func(x, y *array.Array) (*array.Array, error){s.Sub, s.Mul, s.Div, s.Maximum, s.Minimum} {
		out, err := f(a, b)
		require.NoError(t, err)
		out.Release()
	}
	for _, f := range []func(*array.Array) (*array.Array, error){s.Neg, s.Abs, s.Reciprocal} {
		out, err := f(b)
		require.NoError(t, err)
		out.Release()
	}
}

func TestBroadcastFailureNamesOperator(t *testing.T) {
	s := newSession(t)
	a := upload(t, s, []float32{1, 2, 3}, tensor.Shape{3})
	b := upload(t, s, []float32{1, 2, 3, 4}, tensor.Shape{4})

	_, err := s.Add(a, b, 1)
	require.ErrorIs(t, err, errs.ErrBroadcastIncompatible)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "add", e.Op)
	assert.Equal(t, errs.PhaseShape, e.Phase)
}

func TestCastAndPositive(t *testing.T) {
	s := newSession(t)
	e4 := registry.Lookup(registry.Float8E4M3FN).Descr
	a := upload(t, s, []float32{0.3, 1000, -1.5}, tensor.Shape{3})

	packed, err := s.Cast(a, e4)
	require.NoError(t, err)
	defer packed.Release()
	raw, err := packed.ToHost()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2A, 0x7F, 0xBC}, raw.Data())

	same, err := s.Positive(a, nil)
	require.NoError(t, err)
	defer same.Release()
	assert.NotEqual(t, a.Addr(), same.Addr())
	assert.Equal(t, host(t, a), host(t, same))

	ints, err := s.Positive(a, tensor.Int16)
	require.NoError(t, err)
	defer ints.Release()
	assert.Equal(t, []float64{0, 1000, -1}, host(t, ints))
}

func TestCreation(t *testing.T) {
	s := newSession(t)
	bf := registry.Lookup(registry.BFloat16).Descr

	empty, err := s.Empty(tensor.Shape{2, 2}, tensor.Float32)
	require.NoError(t, err)
	defer empty.Release()
	assert.Equal(t, 4, empty.NumElements())

	zeros, err := s.Zeros(tensor.Shape{3}, bf)
	require.NoError(t, err)
	defer zeros.Release()
	assert.Equal(t, []float64{0, 0, 0}, host(t, zeros))

	ones, err := s.Ones(tensor.Shape{2}, tensor.Uint8)
	require.NoError(t, err)
	defer ones.Release()
	assert.Equal(t, []float64{1, 1}, host(t, ones))

	full, err := s.Full(tensor.Shape{}, tensor.Float64, -7.25)
	require.NoError(t, err)
	defer full.Release()
	assert.Equal(t, []float64{-7.25}, host(t, full))

	eye, err := s.Eye(3, 3, tensor.Float32)
	require.NoError(t, err)
	defer eye.Release()
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, host(t, eye))

	ar, err := s.Arange(0, 1, 0.25, tensor.Float32)
	require.NoError(t, err)
	defer ar.Release()
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, host(t, ar))

	down, err := s.Arange(3, 0, -1, tensor.Int32)
	require.NoError(t, err)
	defer down.Release()
	assert.Equal(t, []float64{3, 2, 1}, host(t, down))

	none, err := s.Arange(5, 0, 1, tensor.Int32)
	require.NoError(t, err)
	defer none.Release()
	assert.Zero(t, none.NumElements())

	_, err = s.Arange(0, 1, 0, tensor.Float32)
	assert.ErrorIs(t, err, errs.ErrInvalidShape)
}

func TestBatch(t *testing.T) {
	s := newSession(t)
	inputs := make([]*array.Array, 8)
	for i := range inputs {
		inputs[i] = upload(t, s, []float32{float32(i), -float32(i)}, tensor.Shape{2})
	}

	outs, err := s.Batch(inputs, (*Session).Abs)
	require.NoError(t, err)
	for i, out := range outs {
		assert.Equal(t, []float64{float64(i), float64(i)}, host(t, out))
		out.Release()
	}

	s.Device().FailNextLaunch(device.StatusExecFailed, "queue full")
	_, err = s.Batch(inputs, (*Session).Neg)
	require.ErrorIs(t, err, errs.ErrOperatorExecutionFailure)
	assert.Equal(t, int64(len(inputs)), s.Device().Stats().ActiveBlocks, "outputs of the batch are released")
}

func TestConcurrentDispatchOnOneSession(t *testing.T) {
	s := newSession(t)
	a := upload(t, s, []float32{1, 2, 3, 4}, tensor.Shape{4})
	b := upload(t, s, []float32{10}, tensor.Shape{1})

	const workers, calls = 32, 2000
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < calls; i++ {
				out, err := s.Add(a, b, 1)
				if err != nil {
					return err
				}
				out.Release()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stats := s.Device().Stats()
	assert.Equal(t, uint64(workers*calls), stats.Launches)
	assert.Equal(t, int64(2), stats.ActiveBlocks)
}
