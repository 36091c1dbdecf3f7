package kernels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lowbit/internal/array"
	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/device/simdev"
	"github.com/born-ml/lowbit/internal/dispatch"
	"github.com/born-ml/lowbit/internal/errs"
	"github.com/born-ml/lowbit/internal/parallel"
	"github.com/born-ml/lowbit/internal/registry"
	"github.com/born-ml/lowbit/internal/tensor"
)

type env struct {
	dev  *simdev.Device
	lib  *Library
	disp *dispatch.Dispatcher
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	require.NoError(t, registry.Init())
	dev := simdev.New(simdev.DefaultConfig())
	t.Cleanup(func() { assert.NoError(t, dev.Close()) })
	return &env{dev: dev, lib: New(dev, opts...), disp: dispatch.New(dev)}
}

func upload[T tensor.DType](t *testing.T, e *env, data []T, shape tensor.Shape, dtype *tensor.Descr) *array.Array {
	t.Helper()
	raw, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	a, err := array.FromHost(e.dev, raw, dtype)
	require.NoError(t, err)
	t.Cleanup(a.Release)
	return a
}

func values(t *testing.T, a *array.Array) []float64 {
	t.Helper()
	raw, err := a.ToHost()
	require.NoError(t, err)
	return raw.Float64s()
}

func ext(d *registry.TypeDescriptor) *tensor.Descr {
	return registry.Lookup(d).Descr
}

func TestBroadcastAdd(t *testing.T) {
	e := newEnv(t)
	a := upload(t, e, []float32{1, 2, 3, 4}, tensor.Shape{4, 1}, nil)
	b := upload(t, e, []float32{10, 20, 30}, tensor.Shape{1, 3}, nil)

	out, err := e.disp.Binary("add", e.lib.Add(1), a, b, nil)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, tensor.Shape{4, 3}, out.Shape())
	assert.Equal(t, []float64{
		11, 21, 31,
		12, 22, 32,
		13, 23, 33,
		14, 24, 34,
	}, values(t, out))

	scaled, err := e.disp.Binary("add", e.lib.Add(-2), a, b, nil)
	require.NoError(t, err)
	defer scaled.Release()
	assert.Equal(t, []float64{-19, -39, -59}, values(t, scaled)[:3])
}

func TestBinaryOps(t *testing.T) {
	e := newEnv(t)
	x := upload(t, e, []float64{6, -1, 2.5, math.NaN()}, tensor.Shape{4}, nil)
	y := upload(t, e, []float64{3, 4, 2.5, 1}, tensor.Shape{4}, nil)

	tests := []struct {
		name string
		op   device.Operator
		want []float64
	}{
		{"sub", e.lib.Sub(), []float64{3, -5, 0, math.NaN()}},
		{"mul", e.lib.Mul(), []float64{18, -4, 6.25, math.NaN()}},
		{"div", e.lib.Div(), []float64{2, -0.25, 1, math.NaN()}},
		{"maximum", e.lib.Maximum(), []float64{6, 4, 2.5, math.NaN()}},
		{"minimum", e.lib.Minimum(), []float64{3, -1, 2.5, math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.disp.Binary(tt.name, tt.op, x, y, nil)
			require.NoError(t, err)
			defer out.Release()

			got := values(t, out)
			assert.Equal(t, tt.want[:3], got[:3])
			assert.True(t, math.IsNaN(got[3]))
		})
	}
}

func TestComparisons(t *testing.T) {
	e := newEnv(t)
	x := upload(t, e, []int32{1, 2, 3}, tensor.Shape{3}, nil)
	y := upload(t, e, []float32{2}, tensor.Shape{1}, nil)

	eq, err := e.disp.Binary("equal", e.lib.Equal(), x, y, tensor.Bool)
	require.NoError(t, err)
	defer eq.Release()
	raw, err := eq.ToHost()
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false}, raw.AsBool())

	lt, err := e.disp.Binary("less", e.lib.Less(), x, y, tensor.Bool)
	require.NoError(t, err)
	defer lt.Release()
	assert.Equal(t, []float64{1, 0, 0}, values(t, lt))

	_, err = e.disp.Binary("less", e.lib.Less(), x, y, tensor.Float32)
	require.ErrorIs(t, err, errs.ErrOperatorQueryFailure)
	assert.Contains(t, err.Error(), "output must be bool")
}

func TestUnaryOps(t *testing.T) {
	e := newEnv(t)
	x := upload(t, e, []float64{-4, 0.25, 1}, tensor.Shape{3}, nil)
	pos := upload(t, e, []float64{4, 0.25, 1}, tensor.Shape{3}, nil)

	tests := []struct {
		name string
		op   device.Operator
		in   *array.Array
		want []float64
	}{
		{"neg", e.lib.Neg(), x, []float64{4, -0.25, -1}},
		{"abs", e.lib.Abs(), x, []float64{4, 0.25, 1}},
		{"exp", e.lib.Exp(), x, []float64{math.Exp(-4), math.Exp(0.25), math.E}},
		{"sqrt", e.lib.Sqrt(), pos, []float64{2, 0.5, 1}},
		{"reciprocal", e.lib.Reciprocal(), pos, []float64{0.25, 4, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.disp.Unary(tt.name, tt.op, tt.in, nil)
			require.NoError(t, err)
			defer out.Release()
			assert.InDeltaSlice(t, tt.want, values(t, out), 1e-12)
		})
	}
}

func TestCast(t *testing.T) {
	e := newEnv(t)
	x := upload(t, e, []float32{1.7, -2.2, 300}, tensor.Shape{3}, nil)

	ints, err := e.disp.Unary("cast", e.lib.Cast(), x, tensor.Int32)
	require.NoError(t, err)
	defer ints.Release()
	raw, err := ints.ToHost()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -2, 300}, raw.AsInt32())

	e4, err := e.disp.Unary("cast", e.lib.Cast(), x, ext(registry.Float8E4M3FN))
	require.NoError(t, err)
	defer e4.Release()
	packed, err := e4.ToHost()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.75, -2.25, 288}, packed.Float64s())
}

func TestExtensionArithmetic(t *testing.T) {
	e := newEnv(t)
	bf := ext(registry.BFloat16)
	e4 := ext(registry.Float8E4M3FN)
	a := upload(t, e, []float32{1.5, 2, -3}, tensor.Shape{3}, e4)
	b := upload(t, e, []float32{0.5, 4, 1}, tensor.Shape{3}, e4)

	sum, err := e.disp.Binary("add", e.lib.Add(1), a, b, nil)
	require.NoError(t, err)
	defer sum.Release()
	assert.Same(t, e4, sum.DType())
	assert.Equal(t, []float64{2, 6, -2}, values(t, sum))

	c := upload(t, e, []float32{0.25}, tensor.Shape{1}, bf)
	mixed, err := e.disp.Binary("mul", e.lib.Mul(), a, c, nil)
	require.NoError(t, err)
	defer mixed.Release()
	assert.Same(t, tensor.Float32, mixed.DType())
	assert.Equal(t, []float64{0.375, 0.5, -0.75}, values(t, mixed))
}

func TestStagingWorkspace(t *testing.T) {
	e := newEnv(t)
	a := upload(t, e, []float32{1, 2, 3, 4}, tensor.Shape{4}, nil)
	b := upload(t, e, []int8{1}, tensor.Shape{1}, nil)
	same := upload(t, e, []float32{1}, tensor.Shape{1}, nil)
	out, err := array.Allocate(e.dev, tensor.Shape{4}, tensor.Float32)
	require.NoError(t, err)
	defer out.Release()

	op := e.lib.Add(1)
	size, _, st := op.GetWorkspaceSize([]*device.Tensor{a.Tensor(), b.Tensor()}, []*device.Tensor{out.Tensor()})
	require.True(t, st.OK())
	assert.Equal(t, uint64(4*8), size)

	size, _, st = op.GetWorkspaceSize([]*device.Tensor{a.Tensor(), same.Tensor()}, []*device.Tensor{out.Tensor()})
	require.True(t, st.OK())
	assert.Zero(t, size)

	_, exec, st := op.GetWorkspaceSize([]*device.Tensor{a.Tensor(), b.Tensor()}, []*device.Tensor{out.Tensor()})
	require.True(t, st.OK())
	assert.Equal(t, device.StatusInvalidParam, op.Execute(0, 0, exec, 0))
	assert.Contains(t, e.dev.RecentErrMsg(), "workspace of 0 bytes")
}

func TestExecutorIsSingleUse(t *testing.T) {
	e := newEnv(t)
	a := upload(t, e, []float32{1, 2}, tensor.Shape{2}, nil)
	out, err := array.Allocate(e.dev, tensor.Shape{2}, tensor.Float32)
	require.NoError(t, err)
	defer out.Release()

	op := e.lib.Neg()
	_, exec, st := op.GetWorkspaceSize([]*device.Tensor{a.Tensor()}, []*device.Tensor{out.Tensor()})
	require.True(t, st.OK())

	require.Equal(t, device.Success, op.Execute(0, 0, exec, 0))
	assert.Equal(t, device.StatusInvalidParam, op.Execute(0, 0, exec, 0))
	assert.Equal(t, "neg: executor already used", e.dev.RecentErrMsg())
	require.Equal(t, device.Success, e.dev.SynchronizeDevice())
	assert.Equal(t, []float64{-1, -2}, values(t, out))

	assert.Equal(t, device.StatusInvalidParam, e.lib.Abs().Execute(0, 0, "bogus", 0))
}

func TestQueryValidation(t *testing.T) {
	e := newEnv(t)
	a := upload(t, e, []float32{1, 2, 3}, tensor.Shape{3}, nil)
	out, err := array.Allocate(e.dev, tensor.Shape{2}, tensor.Float32)
	require.NoError(t, err)
	defer out.Release()

	_, _, st := e.lib.Add(1).GetWorkspaceSize([]*device.Tensor{a.Tensor()}, []*device.Tensor{out.Tensor()})
	assert.Equal(t, device.StatusInvalidParam, st)
	assert.Equal(t, "add: expected 2 inputs and 1 output, got 1 and 1", e.dev.RecentErrMsg())

	_, _, st = e.lib.Neg().GetWorkspaceSize([]*device.Tensor{a.Tensor()}, []*device.Tensor{out.Tensor()})
	assert.Equal(t, device.StatusInvalidParam, st)
	assert.Contains(t, e.dev.RecentErrMsg(), "does not broadcast")

	bogus := device.NewTensor([]int{2}, device.DataType(99), out.Addr())
	_, _, st = e.lib.Neg().GetWorkspaceSize([]*device.Tensor{a.Tensor()}, []*device.Tensor{bogus})
	assert.Equal(t, device.StatusUnsupported, st)
}

func TestGenerators(t *testing.T) {
	e := newEnv(t)

	full, err := e.disp.Nullary("fill", e.lib.Fill(2.5), tensor.Shape{2, 2}, tensor.Float32)
	require.NoError(t, err)
	defer full.Release()
	assert.Equal(t, []float64{2.5, 2.5, 2.5, 2.5}, values(t, full))

	iota, err := e.disp.Nullary("iota", e.lib.Iota(1, 0.5), tensor.Shape{5}, ext(registry.Float8E5M2))
	require.NoError(t, err)
	defer iota.Release()
	assert.Equal(t, []float64{1, 1.5, 2, 2.5, 3}, values(t, iota))

	eye, err := e.disp.Nullary("eye", e.lib.Eye(), tensor.Shape{2, 3}, tensor.Int64)
	require.NoError(t, err)
	defer eye.Release()
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0}, values(t, eye))

	_, err = e.disp.Nullary("eye", e.lib.Eye(), tensor.Shape{3}, tensor.Int64)
	assert.ErrorIs(t, err, errs.ErrOperatorQueryFailure)

	empty, err := e.disp.Nullary("fill", e.lib.Fill(1), tensor.Shape{0, 4}, tensor.Float32)
	require.NoError(t, err)
	defer empty.Release()
	assert.Zero(t, empty.NumElements())
}

func TestParallelChunks(t *testing.T) {
	e := newEnv(t, WithParallel(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 256}))
	const n = 10000

	seq, err := e.disp.Nullary("iota", e.lib.Iota(0, 1), tensor.Shape{n}, tensor.Float64)
	require.NoError(t, err)
	defer seq.Release()
	one := upload(t, e, []float32{1}, tensor.Shape{1}, nil)

	sum, err := e.disp.Binary("add", e.lib.Add(1), seq, one, tensor.Float32)
	require.NoError(t, err)
	defer sum.Release()

	got := values(t, sum)
	require.Len(t, got, n)
	for i, v := range got {
		if v != float64(i+1) {
			t.Fatalf("element %d = %v, want %d", i, v, i+1)
		}
	}
}
