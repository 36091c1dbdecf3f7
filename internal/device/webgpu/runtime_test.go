//go:build webgpu

package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lowbit/internal/device"
)

func openRuntime(t *testing.T) *Runtime {
	t.Helper()
	if !IsAvailable() {
		t.Skip("WebGPU not available")
	}
	rt, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	t.Logf("Using %s", rt.Name())
	return rt
}

var _ device.Runtime = (*Runtime)(nil)

func TestRoundTrip(t *testing.T) {
	rt := openRuntime(t)

	src := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	p, st := rt.Malloc(uint64(len(src)), device.HugeFirst)
	require.True(t, st.OK(), rt.RecentErrMsg())

	require.True(t, rt.CopyHostToDevice(p, src).OK(), rt.RecentErrMsg())
	require.True(t, rt.SynchronizeDevice().OK())

	got := make([]byte, len(src))
	require.True(t, rt.CopyDeviceToHost(got, p).OK(), rt.RecentErrMsg())
	assert.Equal(t, src, got)
	assert.True(t, rt.Free(p).OK())
}

func TestDeviceToDevice(t *testing.T) {
	rt := openRuntime(t)

	src := []byte{9, 8, 7, 6, 5, 4, 3, 2}
	a, st := rt.Malloc(8, device.NormalOnly)
	require.True(t, st.OK())
	b, st := rt.Malloc(8, device.NormalOnly)
	require.True(t, st.OK())
	require.NotEqual(t, a, b)

	require.True(t, rt.CopyHostToDevice(a, src).OK())
	require.True(t, rt.CopyDeviceToDevice(b, a, 8).OK())

	got := make([]byte, 8)
	require.True(t, rt.CopyDeviceToHost(got, b).OK())
	assert.Equal(t, src, got)

	// Six bytes of an eight byte buffer would clobber the last two.
	assert.Equal(t, device.StatusInvalidParam, rt.CopyDeviceToDevice(b, a, 6))
	assert.Contains(t, rt.RecentErrMsg(), "not 4-byte aligned")

	rt.Free(a)
	rt.Free(b)
}

func TestErrors(t *testing.T) {
	rt := openRuntime(t)

	_, st := rt.Malloc(0, device.HugeFirst)
	assert.Equal(t, device.StatusInvalidParam, st)

	_, st = rt.Malloc(64, device.HugeOnly)
	assert.Equal(t, device.StatusUnsupported, st)
	assert.Contains(t, rt.RecentErrMsg(), "huge pages")

	assert.Equal(t, device.StatusInvalidParam, rt.Free(0x1234))
	assert.Contains(t, rt.RecentErrMsg(), "unknown address")

	p, st := rt.Malloc(4, device.HugeFirst)
	require.True(t, st.OK())
	assert.Equal(t, device.StatusInvalidParam, rt.CopyHostToDevice(p, make([]byte, 8)))
	assert.Contains(t, rt.RecentErrMsg(), "exceed buffer")
	rt.Free(p)
}

func TestPoolReuse(t *testing.T) {
	rt := openRuntime(t)

	p, st := rt.Malloc(256, device.HugeFirst)
	require.True(t, st.OK())
	require.True(t, rt.Free(p).OK())

	q, st := rt.Malloc(200, device.HugeFirst)
	require.True(t, st.OK())
	defer rt.Free(q)

	hits, misses, pooled := rt.PoolStats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Zero(t, pooled)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, small, classify(16))
	assert.Equal(t, medium, classify(smallThreshold))
	assert.Equal(t, large, classify(mediumThreshold))
	assert.Equal(t, uint64(8), roundUp(5, copyAlign))
	assert.Equal(t, uint64(8), roundUp(8, copyAlign))
}
