package simdev

import (
	"errors"
	"sync"
	"testing"

	"github.com/born-ml/lowbit/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMallocFreeStats(t *testing.T) {
	d := New(DefaultConfig())

	p, st := d.Malloc(24, device.HugeFirst)
	require.Equal(t, device.Success, st)
	require.NotZero(t, p)

	mem, err := d.Memory(p)
	require.NoError(t, err)
	assert.Len(t, mem, 24)

	s := d.Stats()
	assert.Equal(t, uint64(24), s.BytesInUse)
	assert.Equal(t, int64(1), s.ActiveBlocks)
	assert.Equal(t, uint64(0), s.HugeAllocations, "small blocks use normal pages")

	require.Equal(t, device.Success, d.Free(p))
	s = d.Stats()
	assert.Equal(t, uint64(0), s.BytesInUse)
	assert.Equal(t, uint64(24), s.PeakBytes)
	assert.Equal(t, uint64(1), s.Frees)
	require.NoError(t, d.Close())
}

func TestDoubleFreeIsReported(t *testing.T) {
	d := New(DefaultConfig())
	p, st := d.Malloc(8, device.NormalOnly)
	require.True(t, st.OK())

	require.Equal(t, device.Success, d.Free(p))
	assert.Equal(t, device.StatusInvalidParam, d.Free(p))
	assert.Contains(t, d.RecentErrMsg(), "unknown address")
	assert.Equal(t, uint64(1), d.Stats().InvalidFrees)
}

func TestZeroMallocRejected(t *testing.T) {
	d := New(DefaultConfig())
	_, st := d.Malloc(0, device.HugeFirst)
	assert.Equal(t, device.StatusInvalidParam, st)
	assert.Equal(t, uint64(0), d.Stats().Mallocs)
}

func TestHugePagePolicy(t *testing.T) {
	cfg := Config{Name: "small", Capacity: 3 << 20, HugePageSize: 2 << 20}
	d := New(cfg)

	// 2.5MiB rounds to 4MiB huge pages, which do not fit; HugeFirst falls back.
	p, st := d.Malloc(5<<19, device.HugeFirst)
	require.Equal(t, device.Success, st)
	assert.Equal(t, uint64(5<<19), d.Stats().BytesInUse)
	assert.Equal(t, uint64(0), d.Stats().HugeAllocations)
	require.True(t, d.Free(p).OK())

	// HugeOnly cannot fall back.
	_, st = d.Malloc(5<<19, device.HugeOnly)
	assert.Equal(t, device.StatusBadAlloc, st)
	assert.Contains(t, d.RecentErrMsg(), "out of memory")

	// 2MiB exactly is a huge allocation.
	p, st = d.Malloc(2<<20, device.HugeFirst)
	require.True(t, st.OK())
	assert.Equal(t, uint64(1), d.Stats().HugeAllocations)
	require.True(t, d.Free(p).OK())
	require.NoError(t, d.Close())
}

func TestCopies(t *testing.T) {
	d := New(DefaultConfig())
	a, _ := d.Malloc(4, device.HugeFirst)
	b, _ := d.Malloc(4, device.HugeFirst)

	require.True(t, d.CopyHostToDevice(a, []byte{1, 2, 3, 4}).OK())
	require.True(t, d.CopyDeviceToDevice(b, a, 4).OK())

	out := make([]byte, 4)
	require.True(t, d.CopyDeviceToHost(out, b).OK())
	assert.Equal(t, []byte{1, 2, 3, 4}, out)

	assert.Equal(t, device.StatusInvalidParam, d.CopyHostToDevice(a, make([]byte, 5)))
	assert.Equal(t, device.StatusInvalidParam, d.CopyDeviceToHost(out, 0xdead))
	assert.Equal(t, device.StatusInvalidParam, d.CopyDeviceToDevice(b, a, 8))

	d.Free(a)
	d.Free(b)
	require.NoError(t, d.Close())
}

func TestCloseReportsLeaks(t *testing.T) {
	d := New(DefaultConfig())
	_, st := d.Malloc(16, device.HugeFirst)
	require.True(t, st.OK())
	err := d.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 blocks")
}

func TestLaunchAndSynchronize(t *testing.T) {
	d := New(DefaultConfig())

	done := make(chan struct{})
	require.True(t, d.Launch(0, "ok", func() error {
		<-done
		return nil
	}).OK())
	close(done)
	assert.Equal(t, device.Success, d.SynchronizeDevice())

	require.True(t, d.Launch(0, "broken", func() error { return errors.New("bad tile") }).OK())
	assert.Equal(t, device.StatusExecFailed, d.SynchronizeDevice())
	assert.Contains(t, d.RecentErrMsg(), "kernel broken: bad tile")

	// The failure is reported once.
	assert.Equal(t, device.Success, d.SynchronizeDevice())

	s := d.Stats()
	assert.Equal(t, uint64(2), s.Launches)
	assert.Equal(t, uint64(3), s.Syncs)
}

func TestInjectedFaults(t *testing.T) {
	d := New(DefaultConfig())

	d.FailMallocAfter(1)
	p, st := d.Malloc(8, device.HugeFirst)
	require.True(t, st.OK())
	_, st = d.Malloc(8, device.HugeFirst)
	assert.Equal(t, device.StatusBadAlloc, st)
	assert.Contains(t, d.RecentErrMsg(), "injected")
	q, st := d.Malloc(8, device.HugeFirst)
	require.True(t, st.OK(), "fault fires once")

	ran := false
	d.FailNextLaunch(device.StatusExecFailed, "aicore exception")
	assert.Equal(t, device.StatusExecFailed, d.Launch(0, "add", func() error { ran = true; return nil }))
	assert.False(t, ran)
	assert.Contains(t, d.RecentErrMsg(), "aicore exception")

	d.FailNextSync(device.StatusSyncFailed, "stream timeout")
	assert.Equal(t, device.StatusSyncFailed, d.SynchronizeDevice())
	assert.Contains(t, d.RecentErrMsg(), "stream timeout")
	assert.Equal(t, device.Success, d.SynchronizeDevice())

	d.Free(p)
	d.Free(q)
	require.NoError(t, d.Close())
}

func TestPoolReuse(t *testing.T) {
	d := New(DefaultConfig())
	p, _ := d.Malloc(100, device.HugeFirst)
	d.Free(p)
	q, _ := d.Malloc(64, device.HugeFirst)

	s := d.Stats()
	assert.Equal(t, uint64(1), s.PoolHits)
	assert.Equal(t, uint64(1), s.PoolMisses)
	assert.NotEqual(t, p, q, "addresses are never reused")

	mem, err := d.Memory(q)
	require.NoError(t, err)
	assert.Len(t, mem, 64)
	d.Free(q)
	require.NoError(t, d.Close())
	assert.Equal(t, 0, d.Stats().PooledBlocks)
}

func TestConcurrentMalloc(t *testing.T) {
	d := New(DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p, st := d.Malloc(128, device.HugeFirst)
				if !st.OK() {
					t.Errorf("malloc failed: %v", st)
					return
				}
				d.Free(p)
			}
		}()
	}
	wg.Wait()

	s := d.Stats()
	assert.Equal(t, uint64(1600), s.Mallocs)
	assert.Equal(t, uint64(1600), s.Frees)
	assert.Equal(t, uint64(0), s.InvalidFrees)
	require.NoError(t, d.Close())
}

func TestErrorfRecordsDiagnostic(t *testing.T) {
	d := New(DefaultConfig())
	st := d.Errorf(device.StatusInvalidParam, "add: expected %d inputs, got %d", 2, 3)
	assert.Equal(t, device.StatusInvalidParam, st)
	assert.Equal(t, "add: expected 2 inputs, got 3", d.RecentErrMsg())
}

func TestStreamsKeepFailuresApart(t *testing.T) {
	d := New(DefaultConfig())

	good, st := d.CreateStream()
	require.True(t, st.OK())
	bad, st := d.CreateStream()
	require.True(t, st.OK())
	require.NotEqual(t, good, bad)

	require.True(t, d.Launch(bad, "broken", func() error { return errors.New("bad tile") }).OK())
	require.True(t, d.Launch(good, "ok", func() error { return nil }).OK())

	st, msg := d.SynchronizeStream(good)
	assert.Equal(t, device.Success, st)
	assert.Empty(t, msg)

	st, msg = d.SynchronizeStream(bad)
	assert.Equal(t, device.StatusExecFailed, st)
	assert.Equal(t, "kernel broken: bad tile", msg)

	assert.True(t, d.DestroyStream(good).OK())
	assert.True(t, d.DestroyStream(bad).OK())
	assert.Equal(t, device.StatusInvalidParam, d.DestroyStream(bad))
	assert.Equal(t, device.StatusInvalidParam, d.DestroyStream(0), "default stream stays")
	assert.Equal(t, device.StatusInvalidParam, d.Launch(bad, "late", func() error { return nil }))
	require.NoError(t, d.Close())
}

func TestDestroyStreamReportsUnclaimedFailure(t *testing.T) {
	d := New(DefaultConfig())
	s, st := d.CreateStream()
	require.True(t, st.OK())

	require.True(t, d.Launch(s, "broken", func() error { return errors.New("bad tile") }).OK())
	assert.Equal(t, device.StatusExecFailed, d.DestroyStream(s))
	assert.Contains(t, d.RecentErrMsg(), "kernel broken: bad tile")
	assert.Equal(t, device.Success, d.SynchronizeDevice())
}

func TestConcurrentLaunchAndSynchronize(t *testing.T) {
	d := New(DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if st := d.Launch(0, "noop", func() error { return nil }); !st.OK() {
					t.Errorf("launch failed: %v", st)
					return
				}
				if st := d.SynchronizeDevice(); !st.OK() {
					t.Errorf("synchronize failed: %v", st)
					return
				}
			}
		}()
	}
	wg.Wait()

	s := d.Stats()
	assert.Equal(t, uint64(32000), s.Launches)
	assert.Equal(t, uint64(32000), s.Syncs)
	require.NoError(t, d.Close())
}
