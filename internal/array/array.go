// Package array owns n-dimensional arrays resident in device memory.
//
// An Array exclusively owns its allocation. Ownership moves with Move and
// memory is returned exactly once by Release.
package array

import (
	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/errs"
	"github.com/born-ml/lowbit/internal/tensor"
)

// Array is a dense row-major array in device memory.
type Array struct {
	rt     device.Runtime
	shape  tensor.Shape
	dtype  *tensor.Descr
	size   int
	nbytes uint64
	addr   device.Ptr
	desc   *device.Tensor
}

// Allocate reserves uninitialized device memory for shape and dtype.
// Empty arrays own no memory and never call the allocator.
func Allocate(rt device.Runtime, shape tensor.Shape, dtype *tensor.Descr) (*Array, error) {
	tag, err := DeviceType(dtype)
	if err != nil {
		return nil, err
	}
	size, err := shape.Size()
	if err != nil {
		return nil, err
	}
	nbytes, err := shape.ByteSize(dtype.ItemSize)
	if err != nil {
		return nil, err
	}

	var addr device.Ptr
	if nbytes > 0 {
		var st device.Status
		addr, st = rt.Malloc(uint64(nbytes), device.HugeFirst)
		if !st.OK() {
			return nil, errs.New(errs.KindAllocationFailure).
				Op("allocate").
				Status(int32(st)).
				Detail("%d bytes for %v %s: %s", nbytes, []int(shape), dtype, rt.RecentErrMsg()).
				Build()
		}
	}

	shape = shape.Clone()
	return &Array{
		rt:     rt,
		shape:  shape,
		dtype:  dtype,
		size:   size,
		nbytes: uint64(nbytes),
		addr:   addr,
		desc:   device.NewTensor(shape, tag, addr),
	}, nil
}

// FromHost copies a host buffer to the device. A nil dtype keeps the host
// element type; otherwise the host data is converted first.
func FromHost(rt device.Runtime, raw *tensor.RawTensor, dtype *tensor.Descr) (*Array, error) {
	if dtype == nil {
		dtype = raw.DType()
	}
	if dtype != raw.DType() {
		var err error
		if raw, err = tensor.DefaultTypes().Cast(raw, dtype); err != nil {
			return nil, err
		}
	}

	a, err := Allocate(rt, raw.Shape(), dtype)
	if err != nil {
		return nil, err
	}
	if a.nbytes == 0 {
		return a, nil
	}
	if st := rt.CopyHostToDevice(a.addr, raw.Data()); !st.OK() {
		err := a.transferError("host to device", st)
		a.Release()
		return nil, err
	}
	return a, nil
}

// ToHost copies the array back to the host. Extension types come back as
// their packed encodings; decoding is a separate cast.
func (a *Array) ToHost() (*tensor.RawTensor, error) {
	if a.Released() {
		return nil, released("to host")
	}
	raw, err := tensor.NewRaw(a.shape, a.dtype)
	if err != nil {
		return nil, err
	}
	if a.nbytes == 0 {
		return raw, nil
	}
	if st := a.rt.CopyDeviceToHost(raw.Data(), a.addr); !st.OK() {
		return nil, a.transferError("device to host", st)
	}
	return raw, nil
}

// Clone makes an independent device copy and waits for it to land.
func (a *Array) Clone() (*Array, error) {
	if a.Released() {
		return nil, released("clone")
	}
	out, err := Allocate(a.rt, a.shape, a.dtype)
	if err != nil {
		return nil, err
	}
	if a.nbytes == 0 {
		return out, nil
	}
	st := a.rt.CopyDeviceToDevice(out.addr, a.addr, a.nbytes)
	if st.OK() {
		st = a.rt.SynchronizeDevice()
	}
	if !st.OK() {
		err := a.transferError("device to device", st)
		out.Release()
		return nil, err
	}
	return out, nil
}

// Move transfers ownership to a new Array and leaves a released.
func (a *Array) Move() *Array {
	moved := *a
	a.clear()
	return &moved
}

// Reshape moves the allocation into an Array of a new shape with the same
// elements and leaves a released. No data is copied.
func (a *Array) Reshape(shape tensor.Shape) (*Array, error) {
	if a.Released() {
		return nil, released("reshape")
	}
	shape, err := shape.Reshape(a.size)
	if err != nil {
		return nil, err
	}
	tag, err := DeviceType(a.dtype)
	if err != nil {
		return nil, err
	}
	out := a.Move()
	out.desc.Destroy()
	out.shape = shape
	out.desc = device.NewTensor(shape, tag, out.addr)
	return out, nil
}

// Release frees the device memory. It is safe to call more than once.
func (a *Array) Release() {
	if a == nil || a.desc == nil {
		return
	}
	if a.addr != 0 {
		a.rt.Free(a.addr)
	}
	a.desc.Destroy()
	a.clear()
}

func (a *Array) clear() {
	a.addr = 0
	a.nbytes = 0
	a.size = 0
	a.desc = nil
}

// Released reports whether the array no longer owns memory.
func (a *Array) Released() bool {
	return a == nil || a.desc == nil
}

// Tensor returns the device descriptor, nil once released.
func (a *Array) Tensor() *device.Tensor { return a.desc }

// Shape returns the array's dimensions.
func (a *Array) Shape() tensor.Shape { return a.shape }

// DType returns the host element type.
func (a *Array) DType() *tensor.Descr { return a.dtype }

// NumElements returns the element count.
func (a *Array) NumElements() int { return a.size }

// ByteSize returns the size of the owned allocation.
func (a *Array) ByteSize() uint64 { return a.nbytes }

// Addr returns the device address, zero for empty or released arrays.
func (a *Array) Addr() device.Ptr { return a.addr }

// Runtime returns the runtime owning the memory.
func (a *Array) Runtime() device.Runtime { return a.rt }

func (a *Array) transferError(what string, st device.Status) error {
	return errs.New(errs.KindOperatorExecutionFailure).
		Op(what).
		Phase(errs.PhaseTransfer).
		Status(int32(st)).
		Detail("%s", a.rt.RecentErrMsg()).
		Build()
}

func released(op string) error {
	return errs.New(errs.KindReleased).
		Op(op).
		Detail("array has been released").
		Build()
}
