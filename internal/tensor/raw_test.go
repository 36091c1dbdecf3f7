package tensor

import (
	"testing"

	"github.com/born-ml/lowbit/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSlice(t *testing.T) {
	raw, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)

	assert.Equal(t, Float32, raw.DType())
	assert.Equal(t, 24, raw.ByteSize())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, raw.AsFloat32())
	assert.Equal(t, []int{3, 1}, raw.Strides())

	_, err = FromSlice([]float32{1, 2}, Shape{2, 3})
	assert.ErrorIs(t, err, errs.ErrInvalidShape)
}

func TestRawTensorZeroCopyViews(t *testing.T) {
	raw, err := NewRaw(Shape{3, 2}, Int64)
	require.NoError(t, err)

	data := raw.AsInt64()
	require.Len(t, data, 6)
	data[0] = 42
	assert.Equal(t, int64(42), raw.AsInt64()[0])
	assert.Equal(t, float64(42), raw.At(0))

	assert.Panics(t, func() { raw.AsFloat32() })
}

func TestRawTensorSetAt(t *testing.T) {
	for _, d := range Builtins() {
		t.Run(d.Name, func(t *testing.T) {
			raw, err := NewRaw(Shape{3}, d)
			require.NoError(t, err)
			raw.Set(1, 1)
			raw.Set(2, 0)
			assert.Equal(t, []float64{0, 1, 0}, raw.Float64s())
		})
	}
}

func TestRawTensorClone(t *testing.T) {
	raw, err := FromSlice([]int32{1, 2, 3}, Shape{3})
	require.NoError(t, err)

	c := raw.Clone()
	c.AsInt32()[0] = 9
	assert.Equal(t, int32(1), raw.AsInt32()[0])
	assert.Equal(t, int32(9), c.AsInt32()[0])
}

func TestFromBytes(t *testing.T) {
	raw, err := FromBytes(Shape{2}, Uint16, []byte{1, 0, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, raw.Float64s())

	_, err = FromBytes(Shape{2}, Uint16, []byte{1})
	assert.ErrorIs(t, err, errs.ErrInvalidShape)
}

func TestEmptyRawTensor(t *testing.T) {
	raw, err := NewRaw(Shape{0, 4}, Float32)
	require.NoError(t, err)
	assert.Equal(t, 0, raw.ByteSize())
	assert.Empty(t, raw.AsFloat32())
}

func TestRawTensorReshape(t *testing.T) {
	raw, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)

	out, err := raw.Reshape(Shape{3, -1})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, out.Shape())
	assert.Equal(t, []int{2, 1}, out.Strides())
	assert.Equal(t, raw.AsFloat32(), out.AsFloat32())

	out.AsFloat32()[0] = 9
	assert.Equal(t, float32(1), raw.AsFloat32()[0])

	_, err = raw.Reshape(Shape{4})
	assert.Error(t, err)
}
