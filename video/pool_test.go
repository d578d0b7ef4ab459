package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picam/hw"
	"picam/hw/sim"
)

func newSimPort(t *testing.T) (*sim.Component, hw.Port) {
	t.Helper()
	d := sim.New(nil)
	comp, s := d.CreateCamera()
	require.True(t, s.OK())
	return d.Camera(), comp.Output(sim.PortVideo)
}

func TestPoolGetRelease(t *testing.T) {
	comp, port := newSimPort(t)
	p, err := NewPool(port, 3, 16)
	require.NoError(t, err)
	assert.Equal(t, 3, comp.Allocated())
	assert.Equal(t, 3, p.Capacity())
	assert.Equal(t, 16, p.BufferSize())

	var got []*hw.Buffer
	for i := 0; i < 3; i++ {
		b, ok := p.Get()
		require.True(t, ok)
		assert.Len(t, b.Data, 16)
		assert.True(t, p.Owns(b))
		got = append(got, b)
	}
	_, ok := p.Get()
	assert.False(t, ok, "pool should be empty")
	assert.Equal(t, 0, p.Available())
	assert.Equal(t, 3, p.Outstanding())

	assert.True(t, p.Release(got[1]))
	assert.True(t, p.Release(got[1]), "double release is harmless")
	assert.Equal(t, 1, p.Available())
	assert.Equal(t, 2, p.Outstanding())

	assert.False(t, p.Release(&hw.Buffer{}), "foreign buffers are rejected")
	assert.Equal(t, 1, p.Available())
}

func TestPoolReleaseAfterDestroy(t *testing.T) {
	comp, port := newSimPort(t)
	p, err := NewPool(port, 2, 8)
	require.NoError(t, err)

	b, ok := p.Get()
	require.True(t, ok)

	p.Destroy()
	p.Destroy()
	assert.Equal(t, 0, comp.Allocated(), "every buffer is freed, including outstanding ones")

	assert.False(t, p.Release(b))
	assert.Equal(t, 1, p.Dropped())
	assert.Equal(t, 0, p.Available())
	assert.Equal(t, 0, p.Outstanding())
	_, ok = p.Get()
	assert.False(t, ok)
}

func TestPoolAllocateFailure(t *testing.T) {
	d := sim.New(nil)
	comp, _ := d.CreateCamera()
	d.Fail("port1.alloc", hw.StatusENOMEM)

	_, err := NewPool(comp.Output(sim.PortVideo), 3, 16)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, hw.StatusENOMEM, se.Status)
	assert.Equal(t, 0, d.Camera().Allocated())
}
