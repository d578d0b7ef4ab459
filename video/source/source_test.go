package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameResize(t *testing.T) {
	f := NewFrame()
	require.NoError(t, f.Resize(4, 2, EncodingBGR))
	assert.Equal(t, 24, f.Len())
	assert.True(t, f.Continuous())

	// Shrinking keeps the storage.
	f.Pix[0] = 7
	require.NoError(t, f.Resize(4, 2, EncodingGrayscale))
	assert.Equal(t, 8, f.Len())
	assert.Equal(t, byte(7), f.Bytes()[0])

	assert.Error(t, f.Resize(0, 2, EncodingBGR))
}

func TestFrameMean(t *testing.T) {
	f := &Frame{Pix: []byte{0, 10, 20}}
	assert.InDelta(t, 10, f.Mean(), 1e-9)
	assert.Equal(t, float64(0), NewFrame().Mean())
}

func TestParseEncoding(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Encoding
	}{
		{"bgr", EncodingBGR},
		{"", EncodingBGR},
		{"grayscale", EncodingGrayscale},
		{"gray", EncodingGrayscale},
	} {
		got, err := ParseEncoding(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	_, err := ParseEncoding("yuv")
	assert.Error(t, err)

	assert.Equal(t, 3, EncodingBGR.BytesPerPixel())
	assert.Equal(t, 1, EncodingGrayscale.BytesPerPixel())
}

func TestFramePool(t *testing.T) {
	p := NewFramePool(2)
	defer p.Close()

	a, err := p.Get()
	require.NoError(t, err)
	b, err := p.Get()
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	_, err = p.Get()
	assert.ErrorIs(t, err, ErrPoolExhausted)

	require.NoError(t, a.Resize(2, 2, EncodingGrayscale))
	p.Put(a)
	c, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, a, c, "released frames are reused")
	assert.Equal(t, 4, c.Len())
}

func TestFramePoolPutAfterClose(t *testing.T) {
	p := NewFramePool(1)
	f, err := p.Get()
	require.NoError(t, err)
	p.Close()

	done := make(chan struct{})
	go func() {
		p.Put(f)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Put blocked on a closed pool")
	}
}
