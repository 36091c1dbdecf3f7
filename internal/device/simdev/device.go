// Package simdev implements a device runtime on host memory. It follows the
// allocation, copy, launch and synchronization rules of an accelerator
// runtime closely enough to exercise the array core without hardware:
// allocations are handle-addressed, launches run asynchronously until the
// device is synchronized, and failures are reported as status codes with a
// diagnostic string.
package simdev

import (
	"fmt"
	"sync"

	"github.com/born-ml/lowbit/internal/device"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config controls the simulated device.
type Config struct {
	// Name identifies the device in logs.
	Name string
	// Capacity is the memory size in bytes. Zero means unlimited.
	Capacity uint64
	// HugePageSize is the granularity of huge-page allocations.
	HugePageSize uint64
}

// DefaultConfig returns an unlimited device with 2MiB huge pages.
func DefaultConfig() Config {
	return Config{
		Name:         "sim0",
		HugePageSize: 2 << 20,
	}
}

// baseAddr keeps simulated addresses away from zero.
const baseAddr = 0x1000_0000

// addrAlign is the alignment of returned addresses.
const addrAlign = 512

type block struct {
	data []byte
	// footprint is what the block counts against Capacity.
	footprint uint64
	huge      bool
}

// Device is a simulated accelerator. It is safe for concurrent use.
type Device struct {
	cfg  Config
	pool blockPool

	mu      sync.Mutex
	blocks  map[device.Ptr]*block
	next    uintptr
	lastErr string
	faults  faults

	queue queue

	stats memoryStats
}

var _ device.Runtime = (*Device)(nil)

// New creates a simulated device.
func New(cfg Config) *Device {
	if cfg.Name == "" {
		cfg.Name = DefaultConfig().Name
	}
	if cfg.HugePageSize == 0 {
		cfg.HugePageSize = DefaultConfig().HugePageSize
	}
	d := &Device{
		cfg:    cfg,
		blocks: make(map[device.Ptr]*block),
		next:   baseAddr,
	}
	d.queue.init()
	return d
}

// Name returns the configured device name.
func (d *Device) Name() string {
	return d.cfg.Name
}

// Malloc allocates size bytes. Huge-page policies round the footprint up to
// the huge page size; HugeFirst falls back to an exact footprint when the
// rounded one does not fit.
func (d *Device) Malloc(size uint64, policy device.MallocPolicy) (device.Ptr, device.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if size == 0 {
		return 0, d.fail(device.StatusInvalidParam, "malloc: size must be positive")
	}
	if d.faults.mallocDue() {
		return 0, d.fail(device.StatusBadAlloc, fmt.Sprintf("malloc: injected failure for %d bytes", size))
	}

	footprint, huge := size, false
	if policy == device.HugeOnly || (policy == device.HugeFirst && size >= d.cfg.HugePageSize) {
		footprint, huge = roundUp(size, d.cfg.HugePageSize), true
	}
	if !d.fits(footprint) && policy == device.HugeFirst && huge {
		footprint, huge = size, false
	}
	if !d.fits(footprint) {
		return 0, d.fail(device.StatusBadAlloc, fmt.Sprintf(
			"malloc: out of memory: requested %d bytes, %d of %d in use",
			footprint, d.stats.inUse(), d.cfg.Capacity))
	}

	p := device.Ptr(d.next)
	d.next += uintptr(roundUp(size, addrAlign))
	d.blocks[p] = &block{data: d.pool.acquire(size), footprint: footprint, huge: huge}
	d.stats.trackAlloc(footprint, huge)

	return p, device.Success
}

func (d *Device) fits(footprint uint64) bool {
	return d.cfg.Capacity == 0 || d.stats.inUse()+footprint <= d.cfg.Capacity
}

// Free releases a block. Freeing an unknown or already freed address is
// reported and counted, never ignored.
func (d *Device) Free(p device.Ptr) device.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.blocks[p]
	if !ok {
		d.stats.trackInvalidFree()
		return d.fail(device.StatusInvalidParam, fmt.Sprintf("free: unknown address %#x", uintptr(p)))
	}
	delete(d.blocks, p)
	d.pool.release(b.data)
	d.stats.trackFree(b.footprint)
	return device.Success
}

// CopyHostToDevice copies src to the start of the block at dst.
func (d *Device) CopyHostToDevice(dst device.Ptr, src []byte) device.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, st := d.lookup(dst, uint64(len(src)), "memcpy host to device")
	if !st.OK() {
		return st
	}
	copy(b.data, src)
	return device.Success
}

// CopyDeviceToHost copies len(dst) bytes from the block at src.
func (d *Device) CopyDeviceToHost(dst []byte, src device.Ptr) device.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, st := d.lookup(src, uint64(len(dst)), "memcpy device to host")
	if !st.OK() {
		return st
	}
	copy(dst, b.data)
	return device.Success
}

// CopyDeviceToDevice copies size bytes between blocks.
func (d *Device) CopyDeviceToDevice(dst, src device.Ptr, size uint64) device.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	to, st := d.lookup(dst, size, "memcpy device to device")
	if !st.OK() {
		return st
	}
	from, st := d.lookup(src, size, "memcpy device to device")
	if !st.OK() {
		return st
	}
	copy(to.data[:size], from.data[:size])
	return device.Success
}

func (d *Device) lookup(p device.Ptr, size uint64, op string) (*block, device.Status) {
	b, ok := d.blocks[p]
	if !ok {
		return nil, d.fail(device.StatusInvalidParam, fmt.Sprintf("%s: unknown address %#x", op, uintptr(p)))
	}
	if size > uint64(len(b.data)) {
		return nil, d.fail(device.StatusInvalidParam, fmt.Sprintf(
			"%s: %d bytes exceed block of %d at %#x", op, size, len(b.data), uintptr(p)))
	}
	return b, device.Success
}

// Memory returns the bytes of the block at p, for kernels running on this
// device.
func (d *Device) Memory(p device.Ptr) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.blocks[p]
	if !ok {
		return nil, errors.Errorf("simdev: unknown address %#x", uintptr(p))
	}
	return b.data, nil
}

// RecentErrMsg returns the diagnostic of the most recent failure.
func (d *Device) RecentErrMsg() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Errorf records a failure reported by code running against the device,
// such as an operator rejecting its arguments, and returns st.
func (d *Device) Errorf(st device.Status, format string, args ...any) device.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fail(st, fmt.Sprintf(format, args...))
}

// fail records msg as the recent error. Callers hold d.mu.
func (d *Device) fail(st device.Status, msg string) device.Status {
	d.lastErr = msg
	Logger().Debug("device call failed",
		zap.String("device", d.cfg.Name),
		zap.Int32("status", int32(st)),
		zap.String("msg", msg))
	return st
}

// Close waits for queued work and reports blocks that were never freed.
func (d *Device) Close() error {
	d.queue.mu.Lock()
	d.queue.drain()
	d.queue.mu.Unlock()
	d.pool.clear()

	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.blocks); n > 0 {
		return errors.Errorf("simdev: %s closed with %d blocks (%d bytes) still allocated",
			d.cfg.Name, n, d.stats.inUse())
	}
	return nil
}

func roundUp(size, unit uint64) uint64 {
	return (size + unit - 1) / unit * unit
}
