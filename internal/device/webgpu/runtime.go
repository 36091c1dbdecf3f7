//go:build webgpu

// Package webgpu implements device.Runtime on WebGPU storage buffers.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Only memory management and synchronization are provided; operators run
// on the simulated device.
package webgpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/born-ml/lowbit/internal/device"
)

// copyAlign is the granularity of buffer copies.
const copyAlign = 4

// baseAddr is the first handle handed out. Handles are opaque; they are not
// GPU virtual addresses.
const baseAddr = 0x2000_0000

type allocation struct {
	buffer *wgpu.Buffer
	size   uint64 // requested
	alloc  uint64 // buffer size
}

// Runtime manages device memory on one WebGPU device.
type Runtime struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	pool     *bufferPool
	name     string

	mu      sync.Mutex
	next    uintptr
	buffers map[device.Ptr]*allocation
	lastErr string
}

// New opens the default adapter.
// Returns an error if WebGPU is not available or initialization fails.
func New() (rt *Runtime, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			rt = nil
			err = errors.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrap(err, "webgpu: request adapter")
	}
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(err, "webgpu: request device")
	}
	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.New("webgpu: failed to get queue")
	}

	name := "webgpu"
	if info := adapter.GetInfo(); info.Device != "" {
		name = "webgpu:" + info.Device
	}
	return &Runtime{
		instance: instance,
		adapter:  adapter,
		device:   dev,
		queue:    queue,
		pool:     newBufferPool(dev),
		name:     name,
		next:     baseAddr,
		buffers:  make(map[device.Ptr]*allocation),
	}, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Name identifies the adapter.
func (r *Runtime) Name() string { return r.name }

// Malloc creates a storage buffer. GPU memory has no page-size choice, so
// HugeOnly is unsupported and the other policies behave alike.
func (r *Runtime) Malloc(size uint64, policy device.MallocPolicy) (device.Ptr, device.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if size == 0 {
		return 0, r.fail(device.StatusInvalidParam, "malloc: size must be positive")
	}
	if policy == device.HugeOnly {
		return 0, r.fail(device.StatusUnsupported, "malloc: huge pages are not available on webgpu")
	}

	buffer, alloc := r.pool.acquire(roundUp(size, copyAlign))
	if buffer == nil {
		return 0, r.fail(device.StatusBadAlloc, fmt.Sprintf("malloc: cannot create %d byte buffer", size))
	}
	p := device.Ptr(r.next)
	r.next += uintptr(alloc)
	r.buffers[p] = &allocation{buffer: buffer, size: size, alloc: alloc}
	return p, device.Success
}

// Free returns the buffer to the pool.
func (r *Runtime) Free(p device.Ptr) device.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.buffers[p]
	if !ok {
		return r.fail(device.StatusInvalidParam, fmt.Sprintf("free: unknown address %#x", uintptr(p)))
	}
	delete(r.buffers, p)
	r.pool.release(a.buffer, a.alloc)
	return device.Success
}

// CopyHostToDevice uploads src through a mapped staging buffer.
func (r *Runtime) CopyHostToDevice(dst device.Ptr, src []byte) device.Status {
	a, st := r.lookup(dst, uint64(len(src)), "copy to device")
	if !st.OK() {
		return st
	}
	if st := r.checkTail(a, uint64(len(src)), "copy to device"); !st.OK() {
		return st
	}
	size := roundUp(uint64(len(src)), copyAlign)
	staging := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	defer staging.Release()

	mapped := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mapped), size), src)
	staging.Unmap()

	r.submitCopy(staging, a.buffer, size)
	return device.Success
}

// CopyDeviceToHost reads the buffer back, waiting for queued work.
func (r *Runtime) CopyDeviceToHost(dst []byte, src device.Ptr) device.Status {
	a, st := r.lookup(src, uint64(len(dst)), "copy to host")
	if !st.OK() {
		return st
	}
	data, err := r.readBuffer(a.buffer, roundUp(uint64(len(dst)), copyAlign))
	if err != nil {
		return r.failLocked(device.StatusInternal, err.Error())
	}
	copy(dst, data)
	return device.Success
}

// CopyDeviceToDevice queues a buffer to buffer copy.
func (r *Runtime) CopyDeviceToDevice(dst, src device.Ptr, size uint64) device.Status {
	from, st := r.lookup(src, size, "copy device to device")
	if !st.OK() {
		return st
	}
	to, st := r.lookup(dst, size, "copy device to device")
	if !st.OK() {
		return st
	}
	if st := r.checkTail(to, size, "copy device to device"); !st.OK() {
		return st
	}
	r.submitCopy(from.buffer, to.buffer, roundUp(size, copyAlign))
	return device.Success
}

// SynchronizeDevice blocks until every submitted command has completed.
// A one-word readback is ordered after all earlier submissions.
func (r *Runtime) SynchronizeDevice() device.Status {
	fence := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  copyAlign,
	})
	defer fence.Release()
	if _, err := r.readBuffer(fence, copyAlign); err != nil {
		return r.failLocked(device.StatusSyncFailed, err.Error())
	}
	return device.Success
}

// RecentErrMsg returns the diagnostic of the most recent failure.
func (r *Runtime) RecentErrMsg() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// PoolStats reports buffer reuse.
func (r *Runtime) PoolStats() (hits, misses uint64, pooled int) {
	return r.pool.stats()
}

// Close releases pooled buffers and the device. Buffers still allocated are
// released and reported.
func (r *Runtime) Close() error {
	r.mu.Lock()
	leaked := len(r.buffers)
	for p, a := range r.buffers {
		a.buffer.Release()
		delete(r.buffers, p)
	}
	r.mu.Unlock()

	r.pool.clear()
	r.queue.Release()
	r.device.Release()
	r.adapter.Release()
	r.instance.Release()

	if leaked > 0 {
		return errors.Errorf("webgpu: closed with %d buffers still allocated", leaked)
	}
	return nil
}

func (r *Runtime) lookup(p device.Ptr, size uint64, op string) (*allocation, device.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.buffers[p]
	if !ok {
		return nil, r.fail(device.StatusInvalidParam, fmt.Sprintf("%s: unknown address %#x", op, uintptr(p)))
	}
	if size > a.size {
		return nil, r.fail(device.StatusInvalidParam, fmt.Sprintf(
			"%s: %d bytes exceed buffer of %d at %#x", op, size, a.size, uintptr(p)))
	}
	return a, device.Success
}

// checkTail rejects unaligned copies that would overwrite live bytes of dst
// past size. Copies always move whole words.
func (r *Runtime) checkTail(dst *allocation, size uint64, op string) device.Status {
	if size%copyAlign == 0 || size >= dst.size {
		return device.Success
	}
	return r.failLocked(device.StatusInvalidParam, fmt.Sprintf(
		"%s: partial copy of %d bytes is not %d-byte aligned", op, size, copyAlign))
}

func (r *Runtime) submitCopy(src, dst *wgpu.Buffer, size uint64) {
	encoder := r.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, dst, 0, size)
	cmdBuffer := encoder.Finish(nil)
	r.queue.Submit(cmdBuffer)
}

// readBuffer copies src through a mappable staging buffer.
func (r *Runtime) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	r.submitCopy(src, staging, size)

	if err := staging.MapAsync(r.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, errors.Wrap(err, "map staging buffer")
	}
	mapped := staging.GetMappedRange(0, size)
	out := make([]byte, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(out, unsafe.Slice((*byte)(mapped), size))
	staging.Unmap()
	return out, nil
}

// fail records msg. Callers hold r.mu.
func (r *Runtime) fail(st device.Status, msg string) device.Status {
	r.lastErr = msg
	Logger().Debug("webgpu call failed",
		zap.String("runtime", r.name),
		zap.Stringer("status", st),
		zap.String("msg", msg))
	return st
}

func (r *Runtime) failLocked(st device.Status, msg string) device.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fail(st, msg)
}

func roundUp(size, unit uint64) uint64 {
	return (size + unit - 1) / unit * unit
}
