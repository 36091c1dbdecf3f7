package simdev

import "sync"

// sizeClass groups blocks for reuse.
type sizeClass int

const (
	smallBlock  sizeClass = iota // < 4KB
	mediumBlock                  // 4KB - 1MB
	largeBlock                   // >= 1MB
)

const (
	smallThreshold  = 4 * 1024
	mediumThreshold = 1024 * 1024
	maxPoolSize     = 100 // Max blocks per class
)

// blockPool keeps freed host blocks for reuse so that steady-state dispatch
// loops do not hit the Go allocator. Reused blocks keep their old contents,
// like device memory does.
type blockPool struct {
	classes [3][][]byte
	mu      sync.Mutex

	hits   uint64
	misses uint64
}

func classify(size uint64) sizeClass {
	switch {
	case size < smallThreshold:
		return smallBlock
	case size < mediumThreshold:
		return mediumBlock
	default:
		return largeBlock
	}
}

// acquire returns a block of at least size bytes, sliced to size.
func (p *blockPool) acquire(size uint64) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	blocks := p.classes[class]
	for i, b := range blocks {
		if uint64(cap(b)) >= size {
			p.classes[class] = append(blocks[:i], blocks[i+1:]...)
			p.hits++
			return b[:size]
		}
	}

	p.misses++
	return make([]byte, size)
}

// release returns a block to its class, dropping it when the class is full.
func (p *blockPool) release(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(uint64(cap(b)))
	if len(p.classes[class]) >= maxPoolSize {
		return
	}
	p.classes[class] = append(p.classes[class], b[:cap(b)])
}

func (p *blockPool) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.classes {
		p.classes[i] = nil
	}
}

func (p *blockPool) stats() (hits, misses uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.classes {
		pooled += len(c)
	}
	return p.hits, p.misses, pooled
}
