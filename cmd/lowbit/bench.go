package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/lowbit/npu"
	"github.com/born-ml/lowbit/tensor"
)

func runBench(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	workers := fs.Int("workers", 4, "Concurrent dispatching goroutines")
	iters := fs.Int("iters", 100, "Dispatches per goroutine")
	size := fs.Int("size", 1<<16, "Elements per operand")
	dtypeName := fs.String("dtype", "float32", "Output element type (float16, float32 or float64)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workers < 1 || *iters < 1 || *size < 1 {
		return fmt.Errorf("workers, iters and size must be positive")
	}
	dtype, ok := map[string]*tensor.Descr{
		"float16": tensor.Float16,
		"float32": tensor.Float32,
		"float64": tensor.Float64,
	}[*dtypeName]
	if !ok {
		return fmt.Errorf("unsupported bench dtype %q", *dtypeName)
	}

	dev, err := npu.Open(npu.DefaultConfig())
	if err != nil {
		return err
	}
	defer dev.Close()

	x, err := dev.Arange(0, float64(*size), 1, dtype)
	if err != nil {
		return err
	}
	defer x.Release()
	y, err := dev.Full(tensor.Shape{1}, tensor.Float32, 0.5)
	if err != nil {
		return err
	}
	defer y.Release()

	start := time.Now()
	var g errgroup.Group
	for w := 0; w < *workers; w++ {
		g.Go(func() error {
			for i := 0; i < *iters; i++ {
				z, err := dev.Mul(x, y)
				if err != nil {
					return err
				}
				z.Release()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	total := *workers * *iters
	stats := dev.Stats()
	fmt.Fprintln(out, render(titleStyle, "bench"))
	fmt.Fprintf(out, "%d dispatches of %d %s elements in %v\n", total, *size, dtype, elapsed.Round(time.Millisecond))
	fmt.Fprintln(out, render(resultStyle, fmt.Sprintf("%.1f dispatches/s, %.1f Melem/s",
		float64(total)/elapsed.Seconds(), float64(total)*float64(*size)/elapsed.Seconds()/1e6)))
	fmt.Fprintf(out, "peak %d bytes, %d launches, %d syncs, pool hits %d / misses %d\n",
		stats.PeakBytes, stats.Launches, stats.Syncs, stats.PoolHits, stats.PoolMisses)
	return nil
}
