package tensor

import (
	"testing"
)

func BenchmarkShapeOperations(b *testing.B) {
	shape1 := Shape{100, 1, 100}
	shape2 := Shape{100, 100}

	b.Run("Size", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = shape1.Size()
		}
	})

	b.Run("ComputeStrides", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = shape1.ComputeStrides()
		}
	})

	b.Run("Resolve", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = Resolve(shape1, shape2)
		}
	})

	b.Run("FlatIndex", func(b *testing.B) {
		out := Shape{100, 100, 100}
		outStrides := out.ComputeStrides()
		inStrides := BroadcastStrides(shape1, out)
		for i := 0; i < b.N; i++ {
			_ = FlatIndex(i%1_000_000, outStrides, inStrides)
		}
	})
}

func BenchmarkCast(b *testing.B) {
	data := make([]float32, 100*100)
	for i := range data {
		data[i] = float32(i) * 0.25
	}
	src, err := FromSlice(data, Shape{100, 100})
	if err != nil {
		b.Fatal(err)
	}
	ts := DefaultTypes()

	for _, to := range []*Descr{Float64, Float16, Int32} {
		b.Run("float32_to_"+to.Name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := ts.Cast(src, to); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
