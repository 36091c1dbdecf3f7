package tensor

import (
	"errors"
	"math"
	"testing"

	"github.com/born-ml/lowbit/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		a, b Shape
		want Shape
	}{
		{"3d", Shape{3, 1, 5}, Shape{1, 4, 5}, Shape{3, 4, 5}},
		{"prepend", Shape{5}, Shape{3, 5}, Shape{3, 5}},
		{"row vs vector", Shape{2, 3}, Shape{3}, Shape{2, 3}},
		{"vector vs column", Shape{3}, Shape{3, 1}, Shape{3, 3}},
		{"scalar", Shape{3}, Shape{}, Shape{3}},
		{"both scalar", Shape{}, Shape{}, Shape{}},
		{"outer", Shape{4, 1, 3}, Shape{1, 5, 1}, Shape{4, 5, 3}},
		{"identical", Shape{2, 3}, Shape{2, 3}, Shape{2, 3}},
		{"zero dim", Shape{0, 3}, Shape{1, 3}, Shape{0, 3}},
		{"zero against one", Shape{1}, Shape{0}, Shape{0}},
		{"column plus row", Shape{4, 1}, Shape{1, 3}, Shape{4, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// Broadcasting is symmetric.
			rev, err := Resolve(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rev)
		})
	}
}

func TestResolveIncompatible(t *testing.T) {
	tests := []struct {
		name string
		a, b Shape
	}{
		{"vectors", Shape{3}, Shape{4}},
		{"trailing", Shape{2, 3}, Shape{2, 4}},
		{"zero vs two", Shape{0}, Shape{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.a, tt.b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrBroadcastIncompatible), "got %v", err)
		})
	}
}

func TestResolveNegative(t *testing.T) {
	_, err := Resolve(Shape{2, -1}, Shape{2, 1})
	assert.ErrorIs(t, err, errs.ErrInvalidShape)
}

func TestResolveErrorNamesAxis(t *testing.T) {
	_, err := Resolve(Shape{2, 3}, Shape{2, 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "axis -1")
}

func TestResolveAll(t *testing.T) {
	got, err := ResolveAll(Shape{4, 1, 1}, Shape{1, 5, 1}, Shape{6})
	require.NoError(t, err)
	assert.Equal(t, Shape{4, 5, 6}, got)

	got, err = ResolveAll()
	require.NoError(t, err)
	assert.Equal(t, Shape{}, got)

	_, err = ResolveAll(Shape{2}, Shape{2}, Shape{3})
	assert.ErrorIs(t, err, errs.ErrBroadcastIncompatible)
}

func TestShapeSize(t *testing.T) {
	n, err := Shape{2, 3, 4}.Size()
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	n, err = Shape{}.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = Shape{math.MaxInt, 0}.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = Shape{2, -3}.Size()
	assert.ErrorIs(t, err, errs.ErrInvalidShape)

	_, err = Shape{math.MaxInt / 2, 3}.Size()
	assert.ErrorIs(t, err, errs.ErrShapeOverflow)

	_, err = Shape{math.MaxInt / 4}.ByteSize(8)
	assert.ErrorIs(t, err, errs.ErrShapeOverflow)

	b, err := Shape{2, 3}.ByteSize(4)
	require.NoError(t, err)
	assert.Equal(t, 24, b)
}

func TestComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Equal(t, []int{}, Shape{}.ComputeStrides())
}

func TestBroadcastIndexing(t *testing.T) {
	out := Shape{4, 3}
	outStrides := out.ComputeStrides()

	col := BroadcastStrides(Shape{4, 1}, out)
	row := BroadcastStrides(Shape{3}, out)
	assert.Equal(t, []int{1, 0}, col)
	assert.Equal(t, []int{0, 1}, row)

	for i := 0; i < out.NumElements(); i++ {
		assert.Equal(t, i/3, FlatIndex(i, outStrides, col), "col index %d", i)
		assert.Equal(t, i%3, FlatIndex(i, outStrides, row), "row index %d", i)
	}
}

func TestShapeEqualClone(t *testing.T) {
	s := Shape{2, 3}
	c := s.Clone()
	assert.True(t, s.Equal(c))
	c[0] = 5
	assert.False(t, s.Equal(c))
	assert.False(t, s.Equal(Shape{2}))
}

func TestShapeReshape(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		n     int
		want  Shape
	}{
		{"same", Shape{2, 3}, 6, Shape{2, 3}},
		{"flatten", Shape{6}, 6, Shape{6}},
		{"infer", Shape{-1, 2}, 6, Shape{3, 2}},
		{"infer middle", Shape{2, -1, 1}, 6, Shape{2, 3, 1}},
		{"scalar", Shape{}, 1, Shape{}},
		{"empty", Shape{0, 4}, 0, Shape{0, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.shape.Reshape(tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []struct {
		shape Shape
		n     int
	}{
		{Shape{-1, -1}, 4},
		{Shape{4}, 6},
		{Shape{-1, 4}, 6},
		{Shape{-1, 0}, 0},
		{Shape{2, -3}, 6},
	} {
		_, err := bad.shape.Reshape(bad.n)
		assert.Equal(t, errs.KindInvalidShape, errs.KindOf(err), "%v from %d", bad.shape, bad.n)
	}
}
