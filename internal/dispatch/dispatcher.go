// Package dispatch drives device operators through the two-phase protocol:
// query the workspace size, acquire it, execute, synchronize.
package dispatch

import (
	"time"

	"go.uber.org/zap"

	"github.com/born-ml/lowbit/internal/array"
	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/errs"
	"github.com/born-ml/lowbit/internal/tensor"
	"github.com/born-ml/lowbit/internal/workspace"
)

// Observer is told about every state a dispatch enters.
type Observer func(op string, p Phase)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger logs transitions to l instead of the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithObserver registers a transition callback.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observe = o }
}

// WithStream queues every call on s. Without it each call gets a stream of
// its own when the runtime supports streams.
func WithStream(s device.Stream) Option {
	return func(d *Dispatcher) { d.stream = s }
}

// WithTypes resolves dtype promotion in ts instead of the default type system.
func WithTypes(ts *tensor.TypeSystem) Option {
	return func(d *Dispatcher) { d.types = ts }
}

// Dispatcher runs operators on one runtime. It holds no per-call state and
// is safe for concurrent use.
type Dispatcher struct {
	rt      device.Runtime
	types   *tensor.TypeSystem
	stream  device.Stream
	log     *zap.Logger
	observe Observer
}

// New returns a dispatcher for rt.
func New(rt device.Runtime, opts ...Option) *Dispatcher {
	d := &Dispatcher{rt: rt, types: tensor.DefaultTypes()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Runtime returns the runtime the dispatcher launches on.
func (d *Dispatcher) Runtime() device.Runtime { return d.rt }

// Call is one operator invocation over arrays the caller owns.
type Call struct {
	Name    string
	Op      device.Operator
	Inputs  []*array.Array
	Outputs []*array.Array
}

// Launch runs the query, workspace, execute and synchronize phases for c.
// The outputs stay owned by the caller whether or not Launch fails.
func (d *Dispatcher) Launch(c Call) error {
	name := c.Name
	if name == "" && c.Op != nil {
		name = c.Op.Name()
	}
	d.enter(name, ShapeResolved)
	return d.run(name, c.Op, c.Inputs, c.Outputs)
}

// Unary runs op over in into a new array of the same shape. A nil dtype
// keeps the input's element type.
func (d *Dispatcher) Unary(name string, op device.Operator, in *array.Array, dtype *tensor.Descr) (*array.Array, error) {
	if dtype == nil && in != nil {
		dtype = in.DType()
	}
	return d.Nary(name, op, []*array.Array{in}, dtype)
}

// Binary runs op over a and b broadcast together. A nil dtype means the
// promotion of both input types.
func (d *Dispatcher) Binary(name string, op device.Operator, a, b *array.Array, dtype *tensor.Descr) (*array.Array, error) {
	return d.Nary(name, op, []*array.Array{a, b}, dtype)
}

// Nary runs op over inputs broadcast together into one new output.
// A nil dtype means the promotion of every input type.
func (d *Dispatcher) Nary(name string, op device.Operator, inputs []*array.Array, dtype *tensor.Descr) (*array.Array, error) {
	shape, dtype, err := d.resolve(inputs, dtype)
	if err != nil {
		return nil, d.failed(name, ShapeResolved, err)
	}
	return d.produce(name, op, inputs, shape, dtype)
}

// Nullary runs a generator op that fills a new array of shape and dtype.
func (d *Dispatcher) Nullary(name string, op device.Operator, shape tensor.Shape, dtype *tensor.Descr) (*array.Array, error) {
	if dtype == nil {
		return nil, d.failed(name, ShapeResolved, errs.Unsupported("no element type for %v", []int(shape)))
	}
	return d.produce(name, op, nil, shape, dtype)
}

func (d *Dispatcher) produce(name string, op device.Operator, inputs []*array.Array, shape tensor.Shape, dtype *tensor.Descr) (*array.Array, error) {
	out, err := array.Allocate(d.rt, shape, dtype)
	if err != nil {
		return nil, d.failed(name, ShapeResolved, err)
	}
	d.enter(name, ShapeResolved)

	if err := d.run(name, op, inputs, []*array.Array{out}); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

func (d *Dispatcher) resolve(inputs []*array.Array, dtype *tensor.Descr) (tensor.Shape, *tensor.Descr, error) {
	if len(inputs) == 0 {
		return nil, nil, errs.New(errs.KindInvalidShape).Detail("no inputs").Build()
	}
	shapes := make([]tensor.Shape, len(inputs))
	for i, in := range inputs {
		if in.Released() {
			return nil, nil, errs.New(errs.KindReleased).Detail("input %d has been released", i).Build()
		}
		shapes[i] = in.Shape()
	}
	shape, err := tensor.ResolveAll(shapes...)
	if err != nil {
		return nil, nil, err
	}
	if dtype != nil {
		return shape, dtype, nil
	}
	dtype = inputs[0].DType()
	for _, in := range inputs[1:] {
		if dtype, err = d.types.Promote(dtype, in.DType()); err != nil {
			return nil, nil, err
		}
	}
	return shape, dtype, nil
}

// run drives one call from the size query to completion. The workspace is
// released on every path out.
func (d *Dispatcher) run(name string, op device.Operator, inputs, outputs []*array.Array) error {
	start := time.Now()

	if op == nil {
		return d.failed(name, SizeQueried, errs.New(errs.KindOperatorQueryFailure).
			Status(int32(device.StatusInvalidParam)).
			Detail("no operator").
			Build())
	}

	ins, err := tensors(inputs)
	if err != nil {
		return d.failed(name, SizeQueried, err)
	}
	outs, err := tensors(outputs)
	if err != nil {
		return d.failed(name, SizeQueried, err)
	}

	size, exec, st := op.GetWorkspaceSize(ins, outs)
	if !st.OK() {
		return d.statusFailure(name, SizeQueried, st)
	}
	d.enter(name, SizeQueried)

	ws, err := workspace.Acquire(d.rt, size)
	if err != nil {
		return d.failed(name, WorkspaceAcquired, err)
	}
	defer ws.Release()
	d.enter(name, WorkspaceAcquired)

	stream, st := d.openStream()
	if !st.OK() {
		return d.statusFailure(name, Executed, st)
	}
	defer d.closeStream(name, stream)

	if st := op.Execute(ws.Addr(), ws.Size(), exec, stream); !st.OK() {
		return d.statusFailure(name, Executed, st)
	}
	d.enter(name, Executed)

	if st, msg := d.synchronize(stream); !st.OK() {
		return d.diagnosedFailure(name, Synchronized, st, msg)
	}
	d.enter(name, Synchronized)

	d.logger().Debug("dispatch complete",
		zap.String("op", name),
		zap.Uint64("workspace", size),
		zap.Duration("elapsed", time.Since(start)))
	d.enter(name, Done)
	return nil
}

func tensors(arrays []*array.Array) ([]*device.Tensor, error) {
	ts := make([]*device.Tensor, len(arrays))
	for i, a := range arrays {
		if a.Released() {
			return nil, errs.New(errs.KindReleased).Detail("argument %d has been released", i).Build()
		}
		ts[i] = a.Tensor()
	}
	return ts, nil
}

// openStream returns the stream one call executes on.
func (d *Dispatcher) openStream() (device.Stream, device.Status) {
	if d.stream != 0 {
		return d.stream, device.Success
	}
	if s, ok := d.rt.(device.Streams); ok {
		return s.CreateStream()
	}
	return 0, device.Success
}

// closeStream retires a stream opened for one call. It runs before the
// workspace is released, so no kernel outlives its scratch memory.
func (d *Dispatcher) closeStream(name string, stream device.Stream) {
	s, ok := d.rt.(device.Streams)
	if !ok || stream == 0 || stream == d.stream {
		return
	}
	if st := s.DestroyStream(stream); !st.OK() {
		d.logger().Warn("stream destroy failed",
			zap.String("op", name),
			zap.Int32("status", int32(st)),
			zap.String("msg", d.rt.RecentErrMsg()))
	}
}

// synchronize waits for the work of one call. Runtimes without streams are
// synchronized as a whole.
func (d *Dispatcher) synchronize(stream device.Stream) (device.Status, string) {
	if s, ok := d.rt.(device.Streams); ok {
		return s.SynchronizeStream(stream)
	}
	if st := d.rt.SynchronizeDevice(); !st.OK() {
		return st, d.rt.RecentErrMsg()
	}
	return device.Success, ""
}

func (d *Dispatcher) statusFailure(name string, p Phase, st device.Status) error {
	return d.diagnosedFailure(name, p, st, d.rt.RecentErrMsg())
}

func (d *Dispatcher) diagnosedFailure(name string, p Phase, st device.Status, msg string) error {
	return d.failed(name, p, errs.New(p.errKind()).
		Status(int32(st)).
		Detail("%s", msg).
		Build())
}

// failed stamps err with the operation and phase, then reports Failed.
func (d *Dispatcher) failed(name string, p Phase, err error) error {
	if e, ok := err.(*errs.Error); ok {
		stamped := *e
		stamped.Op = name
		if stamped.Phase == "" {
			stamped.Phase = p.errPhase()
		}
		err = &stamped
	} else {
		err = errs.New(p.errKind()).Op(name).Phase(p.errPhase()).Cause(err).Build()
	}

	d.logger().Debug("dispatch failed",
		zap.String("op", name),
		zap.Stringer("phase", p),
		zap.Error(err))
	if d.observe != nil {
		d.observe(name, Failed)
	}
	return err
}

func (d *Dispatcher) enter(name string, p Phase) {
	d.logger().Debug("dispatch transition", zap.String("op", name), zap.Stringer("phase", p))
	if d.observe != nil {
		d.observe(name, p)
	}
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.log != nil {
		return d.log
	}
	return Logger()
}
