package simdev

import "github.com/born-ml/lowbit/internal/device"

// faults holds injected failures. Guarded by Device.mu.
type faults struct {
	// mallocAfter counts successful mallocs left before one fails; -1 disables.
	mallocAfter int
	mallocArmed bool

	launch    device.Status
	launchMsg string

	sync    device.Status
	syncMsg string
}

func (f *faults) mallocDue() bool {
	if !f.mallocArmed {
		return false
	}
	if f.mallocAfter > 0 {
		f.mallocAfter--
		return false
	}
	f.mallocArmed = false
	return true
}

func (f *faults) launchDue() (device.Status, string, bool) {
	if f.launch == device.Success {
		return device.Success, "", false
	}
	st, msg := f.launch, f.launchMsg
	f.launch, f.launchMsg = device.Success, ""
	return st, msg, true
}

func (f *faults) syncDue() (device.Status, string, bool) {
	if f.sync == device.Success {
		return device.Success, "", false
	}
	st, msg := f.sync, f.syncMsg
	f.sync, f.syncMsg = device.Success, ""
	return st, msg, true
}

// FailMallocAfter makes the malloc following n successful ones fail with
// StatusBadAlloc.
func (d *Device) FailMallocAfter(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults.mallocAfter, d.faults.mallocArmed = n, true
}

// FailNextLaunch makes the next Launch return st without running.
func (d *Device) FailNextLaunch(st device.Status, msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults.launch, d.faults.launchMsg = st, msg
}

// FailNextSync makes the next SynchronizeDevice return st.
func (d *Device) FailNextSync(st device.Status, msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults.sync, d.faults.syncMsg = st, msg
}
