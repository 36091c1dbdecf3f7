//go:build webgpu

package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/born-ml/lowbit/dtypes"
	"github.com/born-ml/lowbit/internal/array"
	"github.com/born-ml/lowbit/internal/device/webgpu"
	"github.com/born-ml/lowbit/internal/workspace"
	"github.com/born-ml/lowbit/tensor"
)

func init() {
	commands = append(commands, command{"gpu", "Round-trip packed arrays through WebGPU device memory", runGPU})
}

func runGPU(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("gpu", flag.ContinueOnError)
	dtypeName := fs.String("dtype", "float8_e4m3fn", "Element type to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !webgpu.IsAvailable() {
		return fmt.Errorf("WebGPU is not available on this system")
	}
	if err := dtypes.Init(); err != nil {
		return err
	}
	t, ok := dtypes.ByName(*dtypeName)
	if !ok {
		return fmt.Errorf("unknown dtype %q", *dtypeName)
	}
	dtype, err := t.Descr()
	if err != nil {
		return err
	}

	rt, err := webgpu.New()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	raw, err := tensor.FromSlice([]float32{0.1, 1.5, -2, 448, 3.3, -0.02}, tensor.Shape{2, 3})
	if err != nil {
		return err
	}
	a, err := array.FromHost(rt, raw, dtype)
	if err != nil {
		return err
	}
	defer a.Release()

	// A staged kernel would need n float64 words of scratch.
	ws, err := workspace.Acquire(rt, uint64(a.NumElements())*8)
	if err != nil {
		return err
	}
	defer ws.Release()

	b, err := a.Clone()
	if err != nil {
		return err
	}
	defer b.Release()
	back, err := b.ToHost()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, render(titleStyle, rt.Name()))
	fmt.Fprintf(out, "%s %v, %d bytes, workspace %d bytes\n",
		render(nameStyle, dtype.Name), a.Shape(), a.ByteSize(), ws.Size())
	for i := 0; i < back.NumElements(); i++ {
		fmt.Fprintf(out, "  %-8g -> %s\n", raw.At(i), render(resultStyle, fmt.Sprintf("%g", back.At(i))))
	}
	hits, misses, pooled := rt.PoolStats()
	fmt.Fprintln(out, render(helpStyle, fmt.Sprintf("pool: %d hits, %d misses, %d idle", hits, misses, pooled)))
	return nil
}
