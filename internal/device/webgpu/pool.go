//go:build webgpu

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

type sizeClass int

const (
	small sizeClass = iota
	medium
	large
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
	maxPoolSize     = 100         // Max buffers per class
)

// storageUsage is the usage of every buffer handed out as device memory.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// bufferPool recycles storage buffers by size class.
type bufferPool struct {
	device *wgpu.Device

	mu      sync.Mutex
	classes [3][]*pooledBuffer

	hits   uint64
	misses uint64
}

func newBufferPool(device *wgpu.Device) *bufferPool {
	return &bufferPool{device: device}
}

func classify(size uint64) sizeClass {
	switch {
	case size < smallThreshold:
		return small
	case size < mediumThreshold:
		return medium
	default:
		return large
	}
}

// acquire returns a buffer of at least size bytes.
func (p *bufferPool) acquire(size uint64) (*wgpu.Buffer, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := classify(size)
	for i, pb := range p.classes[c] {
		if pb.size >= size {
			p.classes[c] = append(p.classes[c][:i], p.classes[c][i+1:]...)
			p.hits++
			return pb.buffer, pb.size
		}
	}

	p.misses++
	buffer := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  size,
	})
	return buffer, size
}

// release returns a buffer to its class, destroying it when the class is full.
func (p *bufferPool) release(buffer *wgpu.Buffer, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := classify(size)
	if len(p.classes[c]) >= maxPoolSize {
		buffer.Release()
		return
	}
	p.classes[c] = append(p.classes[c], &pooledBuffer{buffer: buffer, size: size})
}

func (p *bufferPool) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for c := range p.classes {
		for _, pb := range p.classes[c] {
			pb.buffer.Release()
		}
		p.classes[c] = p.classes[c][:0]
	}
}

func (p *bufferPool) stats() (hits, misses uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.classes {
		pooled += len(c)
	}
	return p.hits, p.misses, pooled
}
