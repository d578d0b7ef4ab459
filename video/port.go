package video

import (
	"fmt"
	"image"

	humanize "github.com/dustin/go-humanize"

	"picam/hw"
	"picam/video/source"
)

// PortKind names a camera output by role.
type PortKind int

const (
	PortPreview PortKind = iota
	PortVideo
	PortStill
)

const (
	// MinVideoBuffers is the smallest pool opened on the video port.
	MinVideoBuffers = 3
	// MinStillBuffers is the smallest pool opened on the still port.
	MinStillBuffers = 3
)

// Index is the output index of the port on the component.
func (k PortKind) Index() int {
	return int(k)
}

func (k PortKind) String() string {
	switch k {
	case PortPreview:
		return "preview"
	case PortVideo:
		return "video"
	case PortStill:
		return "still"
	}
	return fmt.Sprintf("port%d", int(k))
}

// openPort is an enabled output together with its pool and the format the
// port was committed with. It is immutable once published.
type openPort struct {
	kind     PortKind
	port     hw.Port
	pool     *Pool
	width    int
	height   int
	encoding source.Encoding
}

// portSet is the set of open outputs seen by the dispatcher.
type portSet struct {
	video *openPort
	still *openPort
}

// lookup returns the open output with index i, if any.
func (s *portSet) lookup(i int) *openPort {
	if s == nil {
		return nil
	}
	if s.video != nil && s.video.kind.Index() == i {
		return s.video
	}
	if s.still != nil && s.still.kind.Index() == i {
		return s.still
	}
	return nil
}

func (s *portSet) get(kind PortKind) *openPort {
	if s == nil {
		return nil
	}
	switch kind {
	case PortVideo:
		return s.video
	case PortStill:
		return s.still
	}
	return nil
}

// with returns a copy of s with kind set to op.
func (s *portSet) with(kind PortKind, op *openPort) *portSet {
	n := &portSet{}
	if s != nil {
		*n = *s
	}
	switch kind {
	case PortVideo:
		n.video = op
	case PortStill:
		n.still = op
	}
	return n
}

// port returns the open output of kind. c.mu must be held.
func (c *Camera) port(kind PortKind) *openPort {
	return c.ports.Load().get(kind)
}

func (c *Camera) publish(kind PortKind, op *openPort) {
	c.ports.Store(c.ports.Load().with(kind, op))
}

// openPort configures, enables and fills the output of kind. Opening an
// open port does nothing. On failure the port is closed again and the
// original error returned. c.mu must be held.
func (c *Camera) openPort(kind PortKind, minBuffers int, fps int) error {
	if c.port(kind) != nil {
		c.log.Tracef("%v port already open", kind)
		return nil
	}
	if c.comp == nil {
		return &StateError{Msg: fmt.Sprintf("cannot open %v port before camera was created", kind)}
	}
	port := c.comp.Output(kind.Index())
	if port == nil {
		return fmt.Errorf("%v port: %w", kind, ErrPortUnavailable)
	}
	l := c.log.WithField("port", kind.String())
	l.Trace("Opening port")

	f := port.Format()
	f.Encoding = hwEncoding(c.encoding)
	f.EncodingVariant = f.Encoding
	f.Width, f.Height = c.width, c.height
	f.Crop = image.Rect(0, 0, c.width, c.height)
	f.FrameRate = hw.Rational{Num: int32(fps), Den: 1}
	if err := checkStatus(port.CommitFormat(f), "unable to set format for %v port", kind); err != nil {
		return err
	}

	if kind == PortStill && port.BufferNumRecommended() > minBuffers {
		minBuffers = port.BufferNumRecommended()
	}
	num := port.BufferNum()
	if num < minBuffers {
		num = minBuffers
		port.SetBufferNum(num)
	}

	l.Trace("Enabling port")
	if err := checkStatus(port.Enable(), "unable to enable %v port", kind); err != nil {
		c.rollback(kind, port)
		return err
	}

	size := port.BufferSize()
	l.Tracef("Creating pool with [%d] buffers of [%s]", num, humanize.IBytes(uint64(size)))
	pool, err := NewPool(port, num, size)
	if err != nil {
		c.rollback(kind, port)
		return fmt.Errorf("unable to allocate %v pool: %w", kind, err)
	}

	// Published before the first buffer is sent so that no completion
	// arrives for a port the dispatcher does not know.
	c.publish(kind, &openPort{
		kind:     kind,
		port:     port,
		pool:     pool,
		width:    c.width,
		height:   c.height,
		encoding: c.encoding,
	})

	l.Tracef("Injecting [%d] buffers", pool.Capacity())
	for i := 0; i < pool.Capacity(); i++ {
		b, ok := pool.Get()
		if !ok {
			break
		}
		if err := checkStatus(port.SendBuffer(b), "unable to send a buffer to the %v port", kind); err != nil {
			pool.Release(b)
			c.logRollback(kind, c.closePort(kind))
			return err
		}
	}
	l.Debugf("Port open, %dx%d %v", c.width, c.height, c.encoding)
	return nil
}

// rollback disables a port that was enabled but never published.
func (c *Camera) rollback(kind PortKind, port hw.Port) {
	if port.Enabled() {
		c.logRollback(kind, checkStatus(port.Disable(), "unable to disable %v port", kind))
	}
}

func (c *Camera) logRollback(kind PortKind, err error) {
	if err != nil {
		c.log.WithError(err).WithField("port", kind.String()).Error("Failed to close port after open failure")
	}
}

// closePort disables the output of kind and destroys its pool. Closing a
// closed port does nothing. Every step is attempted; the first error is
// returned. c.mu must be held.
func (c *Camera) closePort(kind PortKind) error {
	op := c.port(kind)
	if op == nil {
		c.log.Tracef("%v port already closed", kind)
		return nil
	}
	l := c.log.WithField("port", kind.String())
	l.Trace("Closing port")

	var errs []error
	if kind == PortStill {
		l.Trace("Turning off capture")
		errs = append(errs, c.setBool(op.port, hw.ParamCapture, false))
	}
	if op.port.Enabled() {
		l.Trace("Disabling port")
		errs = append(errs, checkStatus(op.port.Disable(), "unable to disable %v port", kind))
	}
	if n := op.pool.Outstanding(); n > 0 {
		l.Debugf("Destroying pool with %d buffers outstanding", n)
	}
	c.publish(kind, nil)
	op.pool.Destroy()
	l.Trace("Port closed")

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
