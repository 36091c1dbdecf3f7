// Package workspace hands out scoped device scratch memory for operators.
package workspace

import (
	"github.com/born-ml/lowbit/internal/device"
	"github.com/born-ml/lowbit/internal/errs"
)

// Workspace is scratch memory owned by a single operator call.
//
// The zero-size workspace is valid and owns nothing. A workspace that failed
// to allocate is never returned; Acquire reports the error instead.
type Workspace struct {
	rt   device.Runtime
	addr device.Ptr
	size uint64
}

// Acquire allocates size bytes of scratch memory. Size zero returns an empty
// workspace without calling the runtime.
func Acquire(rt device.Runtime, size uint64) (*Workspace, error) {
	if size == 0 {
		return &Workspace{rt: rt}, nil
	}
	addr, st := rt.Malloc(size, device.HugeFirst)
	if !st.OK() {
		return nil, errs.New(errs.KindAllocationFailure).
			Op("workspace").
			Phase(errs.PhaseWorkspace).
			Status(int32(st)).
			Detail("%d bytes: %s", size, rt.RecentErrMsg()).
			Build()
	}
	return &Workspace{rt: rt, addr: addr, size: size}, nil
}

// Addr returns the scratch address, zero for an empty workspace.
func (w *Workspace) Addr() device.Ptr {
	if w == nil {
		return 0
	}
	return w.addr
}

// Size returns the scratch size in bytes.
func (w *Workspace) Size() uint64 {
	if w == nil {
		return 0
	}
	return w.size
}

// Empty reports whether the workspace owns no memory.
func (w *Workspace) Empty() bool {
	return w.Addr() == 0
}

// Release frees the scratch memory once. Later calls do nothing.
func (w *Workspace) Release() {
	if w == nil || w.addr == 0 {
		return
	}
	w.rt.Free(w.addr)
	w.addr, w.size = 0, 0
}

// Move transfers ownership and leaves w empty.
func (w *Workspace) Move() *Workspace {
	moved := *w
	w.addr, w.size = 0, 0
	return &moved
}
