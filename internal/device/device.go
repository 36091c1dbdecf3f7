// Package device defines the contracts the array core consumes from an
// accelerator runtime: memory management, synchronization, device-native
// tensor descriptors and the two-phase operator ABI.
package device

import "fmt"

// Ptr is a device memory address. Zero is the null address.
type Ptr uintptr

// Stream identifies a device execution queue. Zero is the default stream.
type Stream uintptr

// Status is a device status code. Zero is success.
type Status int32

// Status codes reported by runtimes in this module.
const (
	Success            Status = 0
	StatusInvalidParam Status = 100000
	StatusBadAlloc     Status = 200000
	StatusUnsupported  Status = 200006
	StatusInternal     Status = 500000
	StatusExecFailed   Status = 507011
	StatusSyncFailed   Status = 507018
)

// OK reports whether s is Success.
func (s Status) OK() bool { return s == Success }

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case StatusInvalidParam:
		return "invalid parameter"
	case StatusBadAlloc:
		return "bad allocation"
	case StatusUnsupported:
		return "feature unsupported"
	case StatusInternal:
		return "internal error"
	case StatusExecFailed:
		return "kernel execution failed"
	case StatusSyncFailed:
		return "stream synchronization failed"
	default:
		return fmt.Sprintf("status %d", int32(s))
	}
}

// MallocPolicy selects the page size preference of an allocation.
type MallocPolicy int

const (
	// HugeFirst tries huge pages and falls back to normal pages.
	HugeFirst MallocPolicy = iota
	// HugeOnly fails rather than falling back.
	HugeOnly
	// NormalOnly never uses huge pages.
	NormalOnly
)

// Runtime is the memory and synchronization surface of a device.
//
// Implementations must be safe for concurrent use.
type Runtime interface {
	// Name identifies the runtime in logs.
	Name() string
	Malloc(size uint64, policy MallocPolicy) (Ptr, Status)
	Free(p Ptr) Status
	CopyHostToDevice(dst Ptr, src []byte) Status
	CopyDeviceToHost(dst []byte, src Ptr) Status
	CopyDeviceToDevice(dst, src Ptr, size uint64) Status
	// SynchronizeDevice blocks until all queued work has finished.
	SynchronizeDevice() Status
	// RecentErrMsg returns the diagnostic of the most recent failure.
	RecentErrMsg() string
}

// Streams is implemented by runtimes with independent execution queues.
// Work on one stream is synchronized, and its failures reported, without
// waiting on or consuming the failures of other streams.
type Streams interface {
	CreateStream() (Stream, Status)
	// SynchronizeStream blocks until work queued on s has finished and
	// returns the first failure among it with its diagnostic.
	SynchronizeStream(s Stream) (Status, string)
	// DestroyStream waits for s to drain and retires it. A failure nobody
	// synchronized is returned rather than dropped.
	DestroyStream(s Stream) Status
}
