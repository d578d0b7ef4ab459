package video

import (
	log "github.com/sirupsen/logrus"

	"picam/hw"
	"picam/video/source"
)

// run consumes completions from comp until quit is closed. It is the only
// goroutine that sees buffers coming back from the driver.
func (c *Camera) run(comp hw.Component, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	events := comp.Events()
	for {
		select {
		case <-quit:
			return
		case ev := <-events:
			c.handle(comp, ev)
		}
	}
}

func (c *Camera) handle(locker BufferLocker, ev hw.Event) {
	if ev.Type == hw.EventParameterChanged {
		c.logSettings(ev.Settings)
		return
	}
	b := ev.Buffer
	if b == nil {
		return
	}

	op := c.ports.Load().lookup(ev.Port)
	if op == nil {
		c.log.WithField("port", PortKind(ev.Port).String()).Warn("Received buffer from a port that is not open, discarding")
		c.metrics.discard(PortKind(ev.Port).String())
		return
	}
	c.deliver(locker, op, b)
}

// deliver processes and recycles b, a completion of op. op may be a
// snapshot taken just before its port was closed.
func (c *Camera) deliver(locker BufferLocker, op *openPort, b *hw.Buffer) {
	name := op.kind.String()
	if !op.pool.Owns(b) || op.pool.Destroyed() {
		c.log.WithField("port", name).Trace("Discarding buffer of a closed pool")
		c.metrics.discard(name)
		return
	}
	c.metrics.buffer(name)

	c.process(locker, op, b)
	c.recycle(op, b)
}

// process locks b and hands its payload to whoever waits for op.
func (c *Camera) process(locker BufferLocker, op *openPort, b *hw.Buffer) {
	lock, err := LockBuffer(locker, b)
	if err != nil && op.pool.Destroyed() {
		c.log.WithField("port", op.kind.String()).Trace("Port closed while buffer was in flight")
		return
	}
	if err != nil {
		c.log.WithError(err).WithField("port", op.kind.String()).Error("Unable to lock buffer")
		c.metrics.lockError(op.kind.String())
		return
	}
	defer lock.Unlock()

	if b.Length == 0 {
		c.log.WithField("port", op.kind.String()).Trace("Skipping empty buffer")
		return
	}
	dec := func(img source.Image) error {
		return decode(b, img, op.width, op.height, op.encoding)
	}

	switch op.kind {
	case PortVideo:
		for _, err := range c.requests.Deliver(dec) {
			c.log.WithError(err).Warn("Unable to decode video frame")
			c.metrics.decodeError(op.kind.String())
		}
		lock.Unlock()
		c.videoEvent.Notify()
	case PortStill:
		ok, err := c.still.Deliver(dec)
		if !ok {
			c.log.Warn("Received a still but no request is pending, discarding")
			c.metrics.discard(op.kind.String())
			return
		}
		if err != nil {
			c.log.WithError(err).Warn("Unable to decode still")
			c.metrics.decodeError(op.kind.String())
		}
		lock.Unlock()
		c.stillEvent.Notify()
	default:
		c.log.WithField("port", op.kind.String()).Warn("Received buffer from unexpected port")
	}
}

// recycle returns b to its pool and refills the port.
func (c *Camera) recycle(op *openPort, b *hw.Buffer) {
	if !op.pool.Release(b) {
		c.log.WithField("port", op.kind.String()).Trace("Pool destroyed, dropping buffer")
		c.metrics.discard(op.kind.String())
		return
	}
	c.refill(op)
}

// refill sends the next free buffer to the port of op while it is enabled.
// It reports whether a buffer was sent.
func (c *Camera) refill(op *openPort) bool {
	if !op.port.Enabled() {
		return false
	}
	name := op.kind.String()
	next, ok := op.pool.Get()
	if !ok {
		c.log.WithField("port", name).Warn("Unable to get a buffer from the pool, port is starving")
		c.metrics.starve(name)
		return false
	}
	if err := checkStatus(op.port.SendBuffer(next), "unable to send a buffer to the %v port", op.kind); err != nil {
		op.pool.Release(next)
		c.log.WithError(err).Warn("Unable to return buffer to the port")
		return false
	}
	return true
}
func (c *Camera) logSettings(s *hw.CameraSettings) {
	if s == nil {
		return
	}
	c.log.WithFields(log.Fields{
		"exposure":     s.Exposure,
		"analog_gain":  s.AnalogGain.Float(),
		"digital_gain": s.DigitalGain.Float(),
		"awb_red":      s.AwbRedGain.Float(),
		"awb_blue":     s.AwbBlueGain.Float(),
		"focus":        s.FocusPosition,
	}).Debug("Camera settings changed")
}
