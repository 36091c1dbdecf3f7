package ops

import (
	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/kernels"
)

// Binding declares one elementwise operator: its name, how many inputs it
// takes and the device operator that computes it.
type Binding struct {
	Name     string
	Arity    int
	BoolOut  bool
	Operator func(*kernels.Library) device.Operator
}

var bindings = []Binding{
	{Name: "add", Arity: 2, Operator: func(l *kernels.Library) device.Operator { return l.Add(1) }},
	{Name: "sub", Arity: 2, Operator: (*kernels.Library).Sub},
	{Name: "mul", Arity: 2, Operator: (*kernels.Library).Mul},
	{Name: "div", Arity: 2, Operator: (*kernels.Library).Div},
	{Name: "maximum", Arity: 2, Operator: (*kernels.Library).Maximum},
	{Name: "minimum", Arity: 2, Operator: (*kernels.Library).Minimum},
	{Name: "equal", Arity: 2, BoolOut: true, Operator: (*kernels.Library).Equal},
	{Name: "less", Arity: 2, BoolOut: true, Operator: (*kernels.Library).Less},
	{Name: "neg", Arity: 1, Operator: (*kernels.Library).Neg},
	{Name: "abs", Arity: 1, Operator: (*kernels.Library).Abs},
	{Name: "exp", Arity: 1, Operator: (*kernels.Library).Exp},
	{Name: "sqrt", Arity: 1, Operator: (*kernels.Library).Sqrt},
	{Name: "reciprocal", Arity: 1, Operator: (*kernels.Library).Reciprocal},
	{Name: "cast", Arity: 1, Operator: (*kernels.Library).Cast},
}

var byName = func() map[string]Binding {
	m := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		m[b.Name] = b
	}
	return m
}()

// Bindings returns the elementwise operator table.
func Bindings() []Binding {
	return append([]Binding(nil), bindings...)
}

// Lookup finds a binding by name.
func Lookup(name string) (Binding, bool) {
	b, ok := byName[name]
	return b, ok
}
