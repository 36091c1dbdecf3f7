package simdev

import (
	"fmt"
	"sync"

	"github.com/born-ml/lowbit/internal/device"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var _ device.Streams = (*Device)(nil)

// queue tracks launched work per stream. idle is broadcast whenever a launch
// finishes.
type queue struct {
	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	next    device.Stream
	streams map[device.Stream]*streamState
}

type streamState struct {
	pending int
	failed  device.Status
	failMsg string
}

func (q *queue) init() {
	q.idle = sync.NewCond(&q.mu)
	q.streams = map[device.Stream]*streamState{0: {}}
}

// drain waits until nothing is pending on the device. Callers hold q.mu.
func (q *queue) drain() {
	for q.pending > 0 {
		q.idle.Wait()
	}
}

// claim takes the failure recorded on s. Callers hold q.mu.
func (s *streamState) claim() (device.Status, string) {
	st, msg := s.failed, s.failMsg
	s.failed, s.failMsg = device.Success, ""
	return st, msg
}

// CreateStream opens a new execution queue.
func (d *Device) CreateStream() (device.Stream, device.Status) {
	q := &d.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.streams[q.next] = &streamState{}
	return q.next, device.Success
}

// DestroyStream waits for s and retires it. The default stream cannot be
// destroyed.
func (d *Device) DestroyStream(s device.Stream) device.Status {
	q := &d.queue
	q.mu.Lock()
	ss, ok := q.streams[s]
	if !ok || s == 0 {
		q.mu.Unlock()
		return d.Errorf(device.StatusInvalidParam, "destroy stream: unknown stream %#x", uintptr(s))
	}
	for ss.pending > 0 {
		q.idle.Wait()
	}
	delete(q.streams, s)
	st, msg := ss.claim()
	q.mu.Unlock()

	if !st.OK() {
		return d.Errorf(st, "destroy stream: unsynchronized failure: %s", msg)
	}
	return device.Success
}

// Launch queues fn on stream. It returns as soon as the work is queued;
// a failure inside fn surfaces from the next synchronization of that stream
// or of the device.
func (d *Device) Launch(stream device.Stream, name string, fn func() error) device.Status {
	d.mu.Lock()
	st, msg, injected := d.faults.launchDue()
	if injected {
		st = d.fail(st, fmt.Sprintf("launch %s: %s", name, msg))
	}
	d.mu.Unlock()
	if injected {
		return st
	}

	q := &d.queue
	q.mu.Lock()
	ss, ok := q.streams[stream]
	if !ok {
		q.mu.Unlock()
		return d.Errorf(device.StatusInvalidParam, "launch %s: unknown stream %#x", name, uintptr(stream))
	}
	ss.pending++
	q.pending++
	q.mu.Unlock()

	d.stats.trackLaunch()
	go func() {
		err := fn()

		q.mu.Lock()
		defer q.mu.Unlock()
		if err != nil && ss.failed.OK() {
			ss.failed = device.StatusExecFailed
			ss.failMsg = errors.Wrapf(err, "kernel %s", name).Error()
		}
		ss.pending--
		q.pending--
		q.idle.Broadcast()
	}()
	return device.Success
}

// SynchronizeStream blocks until the work queued on s has finished and
// reports the first kernel failure on s since its previous synchronization.
func (d *Device) SynchronizeStream(s device.Stream) (device.Status, string) {
	q := &d.queue
	q.mu.Lock()
	ss, ok := q.streams[s]
	if !ok {
		q.mu.Unlock()
		msg := fmt.Sprintf("synchronize: unknown stream %#x", uintptr(s))
		return d.Errorf(device.StatusInvalidParam, "%s", msg), msg
	}
	for ss.pending > 0 {
		q.idle.Wait()
	}
	st, msg := ss.claim()
	q.mu.Unlock()

	return d.settle(st, msg, zap.Uintptr("stream", uintptr(s)))
}

// SynchronizeDevice blocks until all launched work has finished and reports
// a kernel failure from any stream since the previous synchronization.
func (d *Device) SynchronizeDevice() device.Status {
	q := &d.queue
	q.mu.Lock()
	q.drain()
	st, msg := device.Success, ""
	for _, ss := range q.streams {
		if fst, fmsg := ss.claim(); !fst.OK() && st.OK() {
			st, msg = fst, fmsg
		}
	}
	q.mu.Unlock()

	st, _ = d.settle(st, msg)
	return st
}

// settle applies injected sync faults and records a failure reported by a
// synchronization.
func (d *Device) settle(st device.Status, msg string, fields ...zap.Field) (device.Status, string) {
	d.stats.trackSync()

	d.mu.Lock()
	defer d.mu.Unlock()

	if fst, fmsg, ok := d.faults.syncDue(); ok {
		msg = "synchronize: " + fmsg
		return d.fail(fst, msg), msg
	}
	if !st.OK() {
		return d.fail(st, msg), msg
	}
	Logger().Debug("device synchronized", append(fields, zap.String("device", d.cfg.Name))...)
	return device.Success, ""
}
