package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picam/hw"
)

func newCamera(t *testing.T, opts *Options) (*Driver, *Component) {
	t.Helper()
	d := New(opts)
	_, s := d.CreateCamera()
	require.True(t, s.OK())
	c := d.Camera()
	t.Cleanup(func() { c.Destroy() })
	return d, c
}

func enable(t *testing.T, p *Port, n int) []*hw.Buffer {
	t.Helper()
	f := p.Format()
	f.Encoding = hw.EncodingBGR24
	f.Width, f.Height = 2, 2
	require.True(t, p.CommitFormat(f).OK())
	require.True(t, p.Enable().OK())
	bufs, s := p.AllocateBuffers(n, p.BufferSize())
	require.True(t, s.OK())
	for _, b := range bufs {
		require.True(t, p.SendBuffer(b).OK())
	}
	return bufs
}

func TestEmit(t *testing.T) {
	_, c := newCamera(t, &Options{PayloadOffset: 2})
	p := c.OutputPort(PortVideo)
	assert.False(t, c.Emit(PortVideo), "disabled ports emit nothing")

	enable(t, p, 2)
	assert.Equal(t, 12+2, p.BufferSize())
	require.True(t, c.Emit(PortVideo))
	ev := <-c.Events()
	assert.Equal(t, hw.EventBuffer, ev.Type)
	assert.Equal(t, PortVideo, ev.Port)
	assert.Equal(t, 2, ev.Buffer.Offset)
	assert.Len(t, ev.Buffer.Payload(), 12)
	assert.NotZero(t, ev.Buffer.Payload()[0])
	assert.Equal(t, 1, p.Queued())

	require.True(t, c.EmitData(PortVideo, []byte{7, 8}))
	ev = <-c.Events()
	assert.Equal(t, []byte{7, 8}, ev.Buffer.Payload())
	assert.False(t, c.Emit(PortVideo), "queue is empty")
}

func TestPortRules(t *testing.T) {
	d, c := newCamera(t, nil)
	p := c.OutputPort(PortVideo)
	bufs := enable(t, p, 1)

	assert.Equal(t, hw.StatusEINVAL, p.Enable())
	assert.Equal(t, hw.StatusEINVAL, c.OutputPort(PortStill).SendBuffer(bufs[0]), "buffers belong to one port")

	assert.True(t, c.LockBuffer(bufs[0]).OK())
	assert.Equal(t, hw.StatusEAGAIN, c.LockBuffer(bufs[0]))
	c.UnlockBuffer(bufs[0])
	assert.Equal(t, 0, c.Locked())

	require.True(t, p.Disable().OK())
	assert.Equal(t, hw.StatusEINVAL, p.Disable())
	assert.Equal(t, hw.StatusENOTREADY, p.SendBuffer(bufs[0]))

	p.FreeBuffers(bufs)
	assert.Equal(t, hw.StatusEINVAL, c.LockBuffer(bufs[0]), "freed buffers cannot be locked")
	assert.Equal(t, 0, c.Allocated())

	d.Fail("port1.enable", hw.StatusENOSPC)
	assert.Equal(t, hw.StatusENOSPC, p.Enable())
	d.Fail("port1.enable", hw.StatusSuccess)
	assert.True(t, p.Enable().OK())
}

func TestFrameInterval(t *testing.T) {
	_, c := newCamera(t, &Options{FrameInterval: time.Millisecond})
	p := c.OutputPort(PortVideo)
	enable(t, p, 1)
	require.True(t, p.SetBool(hw.ParamCapture, true).OK())

	select {
	case ev := <-c.Events():
		assert.Equal(t, PortVideo, ev.Port)
	case <-time.After(time.Second):
		t.Fatal("no frame generated")
	}
	require.True(t, p.Disable().OK())
}

func TestStillCaptureIsOneShot(t *testing.T) {
	_, c := newCamera(t, &Options{FrameInterval: time.Millisecond})
	p := c.OutputPort(PortStill)
	enable(t, p, 2)
	require.True(t, p.SetBool(hw.ParamCapture, true).OK())

	select {
	case ev := <-c.Events():
		assert.Equal(t, PortStill, ev.Port)
	case <-time.After(time.Second):
		t.Fatal("no still generated")
	}
	select {
	case <-c.Events():
		t.Fatal("a single trigger produced two stills")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDestroy(t *testing.T) {
	d := New(nil)
	d.Fail("create", hw.StatusENOMEM)
	_, s := d.CreateCamera()
	assert.Equal(t, hw.StatusENOMEM, s)
	assert.Equal(t, 0, d.Created())

	d.Fail("create", hw.StatusSuccess)
	comp, s := d.CreateCamera()
	require.True(t, s.OK())
	assert.NotNil(t, comp.Control())
	assert.Nil(t, comp.Output(3))
	assert.True(t, comp.Destroy().OK())
	assert.Equal(t, hw.StatusEINVAL, comp.Destroy())
	assert.Equal(t, hw.StatusEINVAL, comp.Enable())
}
