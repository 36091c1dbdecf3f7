package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/born-ml/lowbit/dtypes"
	"github.com/born-ml/lowbit/npu"
)

func runInspect(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	limit := fs.Int("n", 4, "Number of leading values to show per tensor")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lowbit inspect [-n count] <file.safetensors>")
	}

	dev, err := npu.Open(npu.DefaultConfig())
	if err != nil {
		return err
	}
	defer dev.Close()

	arrays, meta, err := dev.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	defer releaseAll(arrays)

	fmt.Fprintln(out, render(titleStyle, fs.Arg(0)))
	for _, name := range sortedNames(arrays) {
		a := arrays[name]
		raw, err := dev.Download(a)
		if err != nil {
			return err
		}
		vals := make([]string, 0, *limit)
		for i := 0; i < min(*limit, raw.NumElements()); i++ {
			vals = append(vals, fmt.Sprintf("%g", raw.At(i)))
		}
		if raw.NumElements() > *limit {
			vals = append(vals, "...")
		}
		fmt.Fprintf(out, "%s %-16s %-12v %s\n",
			render(nameStyle, fmt.Sprintf("%-24s", name)), a.DType(), []int(a.Shape()),
			render(resultStyle, strings.Join(vals, " ")))
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintln(out, render(helpStyle, fmt.Sprintf("%s = %s", k, meta[k])))
	}
	return nil
}

// runConvert casts every floating-point tensor of a file to a narrow type.
func runConvert(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	dtypeName := fs.String("dtype", "float8_e4m3fn", "Target element type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: lowbit convert [-dtype name] <in.safetensors> <out.safetensors>")
	}
	t, ok := dtypes.ByName(*dtypeName)
	if !ok {
		return fmt.Errorf("unknown dtype %q", *dtypeName)
	}

	dev, err := npu.Open(npu.DefaultConfig())
	if err != nil {
		return err
	}
	defer dev.Close()

	target, err := t.Descr()
	if err != nil {
		return err
	}
	arrays, meta, err := dev.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	defer releaseAll(arrays)

	converted := make(map[string]*npu.Array, len(arrays))
	defer releaseAll(converted)
	var before, after uint64
	for _, name := range sortedNames(arrays) {
		a := arrays[name]
		before += a.ByteSize()
		if !a.DType().IsFloat() || a.DType() == target {
			converted[name] = a.Move()
			after += converted[name].ByteSize()
			continue
		}
		c, err := dev.Cast(a, target)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		converted[name] = c
		after += c.ByteSize()
	}

	delete(meta, npu.ChecksumKey)
	if meta == nil {
		meta = map[string]string{}
	}
	meta["lowbit.dtype"] = target.Name
	if err := dev.Save(fs.Arg(1), converted, meta); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %d tensors, %d -> %d bytes\n",
		render(resultStyle, "converted"), len(converted), before, after)
	return nil
}

func sortedNames(arrays map[string]*npu.Array) []string {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func releaseAll(arrays map[string]*npu.Array) {
	for _, a := range arrays {
		a.Release()
	}
}

