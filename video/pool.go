package video

import (
	"fmt"
	"sync"

	"picam/hw"
)

// Pool is the fixed set of buffers allocated for one port. Buffers move
// between the free list and the port; Get hands one out exclusively and
// Release takes it back. Once destroyed, released buffers are dropped.
type Pool struct {
	port hw.Port
	size int

	mu        sync.Mutex
	allocated []*hw.Buffer
	owned     map[*hw.Buffer]bool
	available []*hw.Buffer
	destroyed bool
	dropped   int
}

// NewPool allocates num buffers of size bytes from port.
func NewPool(port hw.Port, num, size int) (*Pool, error) {
	bufs, s := port.AllocateBuffers(num, size)
	if err := checkStatus(s, "unable to allocate %d buffers of %d bytes", num, size); err != nil {
		return nil, err
	}
	if len(bufs) != num {
		port.FreeBuffers(bufs)
		return nil, fmt.Errorf("driver allocated %d buffers, want %d", len(bufs), num)
	}
	p := &Pool{
		port:      port,
		size:      size,
		allocated: bufs,
		owned:     make(map[*hw.Buffer]bool, num),
		available: make([]*hw.Buffer, 0, num),
	}
	for _, b := range bufs {
		p.owned[b] = true
		p.available = append(p.available, b)
	}
	return p, nil
}

// Get dequeues a free buffer. It returns false when the pool is empty or
// destroyed.
func (p *Pool) Get() (*hw.Buffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed || len(p.available) == 0 {
		return nil, false
	}
	b := p.available[0]
	p.available = p.available[1:]
	return b, true
}

// Release returns b to the free list. It returns false when b was dropped
// because the pool is destroyed, or does not belong to it.
func (p *Pool) Release(b *hw.Buffer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.owned[b] {
		return false
	}
	if p.destroyed {
		p.dropped++
		return false
	}
	for _, a := range p.available {
		if a == b {
			// Already free; a double release must not grow the list.
			return true
		}
	}
	b.Offset, b.Length = 0, 0
	p.available = append(p.available, b)
	return true
}

// Owns reports whether b was allocated by this pool.
func (p *Pool) Owns(b *hw.Buffer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owned[b]
}

func (p *Pool) Capacity() int {
	return len(p.allocated)
}

// BufferSize is the size of every buffer in the pool.
func (p *Pool) BufferSize() int {
	return p.size
}

func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available)
}

// Outstanding is the number of buffers handed out and not yet released.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return 0
	}
	return len(p.allocated) - len(p.available)
}

func (p *Pool) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// Dropped counts releases that arrived after Destroy.
func (p *Pool) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Destroy frees every buffer the pool allocated, wherever it currently is.
func (p *Pool) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	p.available = nil
	bufs := p.allocated
	p.mu.Unlock()

	p.port.FreeBuffers(bufs)
}
