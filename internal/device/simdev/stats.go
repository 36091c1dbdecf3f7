package simdev

import "sync"

// MemoryStats reports device memory usage.
type MemoryStats struct {
	// Bytes currently allocated, counting huge-page rounding.
	BytesInUse uint64
	// Peak of BytesInUse.
	PeakBytes uint64
	// Total bytes allocated since creation.
	TotalAllocatedBytes uint64
	// Number of live allocations.
	ActiveBlocks int64

	Mallocs         uint64
	Frees           uint64
	InvalidFrees    uint64
	HugeAllocations uint64
	Launches        uint64
	Syncs           uint64

	// Block pool statistics.
	PoolHits     uint64
	PoolMisses   uint64
	PooledBlocks int
}

type memoryStats struct {
	mu sync.RWMutex
	s  MemoryStats
}

func (m *memoryStats) inUse() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.BytesInUse
}

func (m *memoryStats) trackAlloc(size uint64, huge bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.s.BytesInUse += size
	m.s.TotalAllocatedBytes += size
	m.s.ActiveBlocks++
	m.s.Mallocs++
	if huge {
		m.s.HugeAllocations++
	}
	if m.s.BytesInUse > m.s.PeakBytes {
		m.s.PeakBytes = m.s.BytesInUse
	}
}

func (m *memoryStats) trackFree(size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.s.BytesInUse -= size
	m.s.ActiveBlocks--
	m.s.Frees++
}

func (m *memoryStats) trackInvalidFree() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.InvalidFrees++
}

func (m *memoryStats) trackLaunch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.Launches++
}

func (m *memoryStats) trackSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.Syncs++
}

// Stats returns a snapshot of memory statistics.
func (d *Device) Stats() MemoryStats {
	d.stats.mu.RLock()
	s := d.stats.s
	d.stats.mu.RUnlock()

	s.PoolHits, s.PoolMisses, s.PooledBlocks = d.pool.stats()
	return s
}
