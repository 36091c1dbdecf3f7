// Package kernels is a reference operator library for the simulated device.
//
// Every operator follows the two-phase ABI: GetWorkspaceSize validates the
// descriptors and prepares a single-use executor, Execute queues the work.
// Elements are computed in float64. When an input type differs from the
// output type the results are staged in a float64 workspace and narrowed in
// a second pass.
package kernels

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/born-ml/lowbit/internal/array"
	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/device/simdev"
	"github.com/born-ml/lowbit/internal/parallel"
	"github.com/born-ml/lowbit/internal/tensor"
)

// stageItemSize is the width of one staged element.
const stageItemSize = 8

// Library builds operators bound to one device.
type Library struct {
	dev *simdev.Device
	par parallel.Config
}

// Option configures a Library.
type Option func(*Library)

// WithParallel sets how kernels split their element loops.
func WithParallel(cfg parallel.Config) Option {
	return func(l *Library) { l.par = cfg }
}

// New returns a library launching on dev.
func New(dev *simdev.Device, opts ...Option) *Library {
	l := &Library{dev: dev, par: parallel.DefaultConfig()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Device returns the device operators launch on.
func (l *Library) Device() *simdev.Device { return l.dev }

// kernel describes the element function of one operator. Exactly one of
// unary, binary and gen is set.
type kernel struct {
	name    string
	boolOut bool
	square  bool

	unary  func(x float64) float64
	binary func(x, y float64) float64
	gen    func(idx int, shape tensor.Shape) float64
}

func (k kernel) arity() int {
	switch {
	case k.binary != nil:
		return 2
	case k.unary != nil:
		return 1
	default:
		return 0
	}
}

// operator adapts a kernel to device.Operator.
type operator struct {
	lib *Library
	k   kernel
}

func (o *operator) Name() string { return o.k.name }

type operand struct {
	addr  device.Ptr
	descr *tensor.Descr
	// strides index the operand as if it had the output's shape.
	strides []int
}

type executor struct {
	used atomic.Bool

	k          kernel
	ins        []operand
	out        operand
	shape      tensor.Shape
	outStrides []int
	n          int
	staged     bool
}

func (o *operator) GetWorkspaceSize(ins, outs []*device.Tensor) (uint64, device.Executor, device.Status) {
	k, dev := o.k, o.lib.dev
	if len(ins) != k.arity() || len(outs) != 1 {
		return 0, nil, dev.Errorf(device.StatusInvalidParam,
			"%s: expected %d inputs and 1 output, got %d and %d", k.name, k.arity(), len(ins), len(outs))
	}

	outShape := shapeOf(outs[0])
	outDescr, err := array.DescrOf(outs[0].DataType())
	if err != nil {
		return 0, nil, dev.Errorf(device.StatusUnsupported, "%s: output: %v", k.name, err)
	}
	if k.boolOut && outDescr != tensor.Bool {
		return 0, nil, dev.Errorf(device.StatusInvalidParam, "%s: output must be bool, got %s", k.name, outDescr)
	}
	if k.square && len(outShape) != 2 {
		return 0, nil, dev.Errorf(device.StatusInvalidParam, "%s: output must be 2-D, got %v", k.name, []int(outShape))
	}

	e := &executor{
		k:          k,
		out:        operand{addr: outs[0].Addr(), descr: outDescr},
		shape:      outShape,
		outStrides: outShape.ComputeStrides(),
		n:          outShape.NumElements(),
	}
	for i, in := range ins {
		descr, err := array.DescrOf(in.DataType())
		if err != nil {
			return 0, nil, dev.Errorf(device.StatusUnsupported, "%s: input %d: %v", k.name, i, err)
		}
		inShape := shapeOf(in)
		if got, err := tensor.Resolve(inShape, outShape); err != nil || !got.Equal(outShape) {
			return 0, nil, dev.Errorf(device.StatusInvalidParam,
				"%s: input %d shape %v does not broadcast to %v", k.name, i, []int(inShape), []int(outShape))
		}
		e.ins = append(e.ins, operand{
			addr:    in.Addr(),
			descr:   descr,
			strides: tensor.BroadcastStrides(inShape, outShape),
		})
		if descr != outDescr {
			e.staged = true
		}
	}

	if !e.staged || e.n == 0 {
		return 0, e, device.Success
	}
	return uint64(e.n) * stageItemSize, e, device.Success
}

func (o *operator) Execute(ws device.Ptr, size uint64, exec device.Executor, stream device.Stream) device.Status {
	dev := o.lib.dev
	e, ok := exec.(*executor)
	if !ok || e.k.name != o.k.name {
		return dev.Errorf(device.StatusInvalidParam, "%s: foreign executor %T", o.k.name, exec)
	}
	if !e.used.CompareAndSwap(false, true) {
		return dev.Errorf(device.StatusInvalidParam, "%s: executor already used", o.k.name)
	}
	if e.staged && e.n > 0 && size < uint64(e.n)*stageItemSize {
		return dev.Errorf(device.StatusInvalidParam,
			"%s: workspace of %d bytes, need %d", o.k.name, size, uint64(e.n)*stageItemSize)
	}
	return dev.Launch(stream, o.k.name, func() error { return o.lib.run(e, ws) })
}

func (l *Library) run(e *executor, ws device.Ptr) error {
	if e.n == 0 {
		return nil
	}
	out, err := l.dev.Memory(e.out.addr)
	if err != nil {
		return err
	}
	ins := make([][]byte, len(e.ins))
	for i, in := range e.ins {
		if ins[i], err = l.dev.Memory(in.addr); err != nil {
			return err
		}
	}

	set, osize := e.out.descr.Funcs.SetItem, e.out.descr.ItemSize
	if !e.staged {
		parallel.For(e.n, l.par, func(start, end int) {
			for i := start; i < end; i++ {
				set(out[i*osize:], e.compute(i, ins))
			}
		})
		return nil
	}

	stage, err := l.dev.Memory(ws)
	if err != nil {
		return err
	}
	parallel.For(e.n, l.par, func(start, end int) {
		for i := start; i < end; i++ {
			binary.LittleEndian.PutUint64(stage[i*stageItemSize:], math.Float64bits(e.compute(i, ins)))
		}
	})
	parallel.For(e.n, l.par, func(start, end int) {
		for i := start; i < end; i++ {
			set(out[i*osize:], math.Float64frombits(binary.LittleEndian.Uint64(stage[i*stageItemSize:])))
		}
	})
	return nil
}

// compute evaluates the element at flat output index i.
func (e *executor) compute(i int, ins [][]byte) float64 {
	switch {
	case e.k.gen != nil:
		return e.k.gen(i, e.shape)
	case e.k.unary != nil:
		return e.k.unary(e.load(0, i, ins))
	default:
		return e.k.binary(e.load(0, i, ins), e.load(1, i, ins))
	}
}

func (e *executor) load(j, i int, ins [][]byte) float64 {
	in := e.ins[j]
	off := tensor.FlatIndex(i, e.outStrides, in.strides)
	return in.descr.Funcs.GetItem(ins[j][off*in.descr.ItemSize:])
}

func shapeOf(t *device.Tensor) tensor.Shape {
	dims := t.Shape()
	s := make(tensor.Shape, len(dims))
	for i, d := range dims {
		s[i] = int(d)
	}
	return s
}

func (l *Library) op(k kernel) device.Operator {
	return &operator{lib: l, k: k}
}
