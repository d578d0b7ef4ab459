package source

import (
	"errors"
)

// ErrPoolExhausted is returned by FramePool.Get when every frame is in use.
var ErrPoolExhausted = errors.New("frame pool exhausted, perhaps a frame isn't being released?")

// FramePool recycles Frames between a producer and a consumer. All state
// is owned by a single goroutine.
type FramePool struct {
	new   chan chan *Frame
	free  chan *Frame
	close chan chan bool
	done  chan struct{}

	max       int
	allocated int
	available []*Frame
}

// NewFramePool returns a pool that holds at most size frames at once.
func NewFramePool(size int) *FramePool {
	p := &FramePool{
		new:   make(chan chan *Frame),
		free:  make(chan *Frame),
		close: make(chan chan bool),
		done:  make(chan struct{}),
		max:   size,
	}
	go p.run()
	return p
}

func (p *FramePool) run() {
	for {
		select {
		case c := <-p.close:
			p.allocated -= len(p.available)
			p.available = nil
			close(p.done)
			c <- true
			return
		case f := <-p.free:
			p.available = append(p.available, f)
		case r := <-p.new:
			var f *Frame
			if len(p.available) > 0 {
				f, p.available = p.available[0], p.available[1:]
			} else if p.allocated < p.max {
				f = NewFrame()
				p.allocated++
			}
			r <- f
		}
	}
}

// Get returns a free frame, allocating one while under the limit.
func (p *FramePool) Get() (*Frame, error) {
	r := make(chan *Frame)
	p.new <- r
	if f := <-r; f != nil {
		return f, nil
	}
	return nil, ErrPoolExhausted
}

// Put hands f back for reuse. Frames put after Close are dropped.
func (p *FramePool) Put(f *Frame) {
	select {
	case p.free <- f:
	case <-p.done:
	}
}

func (p *FramePool) Close() {
	c := make(chan bool)
	p.close <- c
	<-c
}
