package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/lowbit/dtypes"
	"github.com/born-ml/lowbit/npu"
	"github.com/born-ml/lowbit/tensor"
)

func runDemo(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	dtypeName := fs.String("dtype", "float32", "Element type of the left operand (float32 or an extension type name)")
	alpha := fs.Float64("alpha", 1, "Scale applied to the right operand")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var phases []string
	dev, err := npu.Open(npu.DefaultConfig(), npu.WithObserver(func(_ string, p npu.Phase) {
		phases = append(phases, p.String())
	}))
	if err != nil {
		return err
	}
	defer dev.Close()

	dtype := tensor.Float32
	if *dtypeName != "float32" {
		t, ok := dtypes.ByName(*dtypeName)
		if !ok {
			return fmt.Errorf("unknown dtype %q", *dtypeName)
		}
		if dtype, err = t.Descr(); err != nil {
			return err
		}
	}

	colRaw, err := tensor.FromSlice([]float32{0.1, 1, 2.5, 7}, tensor.Shape{4, 1})
	if err != nil {
		return err
	}
	rowRaw, err := tensor.FromSlice([]float32{10, -20, 0.3}, tensor.Shape{1, 3})
	if err != nil {
		return err
	}
	a, err := dev.Upload(colRaw, dtype)
	if err != nil {
		return err
	}
	defer a.Release()
	b, err := dev.Upload(rowRaw, nil)
	if err != nil {
		return err
	}
	defer b.Release()

	phases = phases[:0]
	sum, err := dev.Add(a, b, *alpha)
	if err != nil {
		return err
	}
	defer sum.Release()

	raw, err := dev.Download(sum)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, render(titleStyle, fmt.Sprintf("(4,1) %s + %g * (1,3) float32", dtype, *alpha)))
	fmt.Fprintf(out, "result %v %s\n", []int(sum.Shape()), sum.DType())
	cols := sum.Shape()[1]
	values := raw.Float64s()
	for r := 0; r < sum.Shape()[0]; r++ {
		cells := make([]string, cols)
		for c := range cells {
			cells[c] = fmt.Sprintf("%10.4g", values[r*cols+c])
		}
		fmt.Fprintln(out, render(resultStyle, strings.Join(cells, " ")))
	}
	fmt.Fprintln(out, render(helpStyle, "phases: "+strings.Join(phases, " -> ")))
	return nil
}
