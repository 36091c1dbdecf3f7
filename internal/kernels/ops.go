package kernels

import (
	"math"

	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/tensor"
)

// Add computes x + alpha*y.
func (l *Library) Add(alpha float64) device.Operator {
	if alpha == 1 {
		return l.op(kernel{name: "add", binary: func(x, y float64) float64 { return x + y }})
	}
	return l.op(kernel{name: "add", binary: func(x, y float64) float64 { return x + alpha*y }})
}

// Sub computes x - y.
func (l *Library) Sub() device.Operator {
	return l.op(kernel{name: "sub", binary: func(x, y float64) float64 { return x - y }})
}

// Mul computes x * y.
func (l *Library) Mul() device.Operator {
	return l.op(kernel{name: "mul", binary: func(x, y float64) float64 { return x * y }})
}

// Div computes x / y. Integer outputs truncate the float quotient.
func (l *Library) Div() device.Operator {
	return l.op(kernel{name: "div", binary: func(x, y float64) float64 { return x / y }})
}

// Maximum returns the larger operand, NaN if either is NaN.
func (l *Library) Maximum() device.Operator {
	return l.op(kernel{name: "maximum", binary: func(x, y float64) float64 {
		if math.IsNaN(x) || math.IsNaN(y) {
			return math.NaN()
		}
		return math.Max(x, y)
	}})
}

// Minimum returns the smaller operand, NaN if either is NaN.
func (l *Library) Minimum() device.Operator {
	return l.op(kernel{name: "minimum", binary: func(x, y float64) float64 {
		if math.IsNaN(x) || math.IsNaN(y) {
			return math.NaN()
		}
		return math.Min(x, y)
	}})
}

// Equal writes x == y into a bool output.
func (l *Library) Equal() device.Operator {
	return l.op(kernel{name: "equal", boolOut: true, binary: func(x, y float64) float64 { return truth(x == y) }})
}

// Less writes x < y into a bool output.
func (l *Library) Less() device.Operator {
	return l.op(kernel{name: "less", boolOut: true, binary: func(x, y float64) float64 { return truth(x < y) }})
}

// Neg computes -x.
func (l *Library) Neg() device.Operator {
	return l.op(kernel{name: "neg", unary: func(x float64) float64 { return -x }})
}

// Abs computes |x|.
func (l *Library) Abs() device.Operator {
	return l.op(kernel{name: "abs", unary: math.Abs})
}

// Exp computes e^x.
func (l *Library) Exp() device.Operator {
	return l.op(kernel{name: "exp", unary: math.Exp})
}

// Sqrt computes the square root.
func (l *Library) Sqrt() device.Operator {
	return l.op(kernel{name: "sqrt", unary: math.Sqrt})
}

// Reciprocal computes 1/x.
func (l *Library) Reciprocal() device.Operator {
	return l.op(kernel{name: "reciprocal", unary: func(x float64) float64 { return 1 / x }})
}

// Cast converts the input to the output's element type.
func (l *Library) Cast() device.Operator {
	return l.op(kernel{name: "cast", unary: func(x float64) float64 { return x }})
}

// Fill sets every element to value.
func (l *Library) Fill(value float64) device.Operator {
	return l.op(kernel{name: "fill", gen: func(int, tensor.Shape) float64 { return value }})
}

// Iota sets element i of the flattened output to start + i*step.
func (l *Library) Iota(start, step float64) device.Operator {
	return l.op(kernel{name: "iota", gen: func(i int, _ tensor.Shape) float64 { return start + float64(i)*step }})
}

// Eye writes ones on the main diagonal of a 2-D output and zeros elsewhere.
func (l *Library) Eye() device.Operator {
	return l.op(kernel{name: "eye", square: true, gen: func(i int, shape tensor.Shape) float64 {
		cols := shape[1]
		return truth(i/cols == i%cols)
	}})
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
