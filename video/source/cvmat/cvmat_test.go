package cvmat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picam/video/source"
)

var _ source.Image = (*Image)(nil)

func TestImageResize(t *testing.T) {
	img := New()
	defer img.Close()

	require.NoError(t, img.Resize(8, 4, source.EncodingBGR))
	assert.Equal(t, 8, img.Mat.Cols())
	assert.Equal(t, 4, img.Mat.Rows())
	assert.Equal(t, 8*4*3, img.Len())
	assert.True(t, img.Continuous())
	assert.Len(t, img.Bytes(), 8*4*3)

	require.NoError(t, img.Resize(8, 4, source.EncodingGrayscale))
	assert.Equal(t, 8*4, img.Len())

	b := img.Bytes()
	for i := range b {
		b[i] = 100
	}
	assert.InDelta(t, 100, img.Mean(), 1e-9)
}

func TestImageClosed(t *testing.T) {
	img := New()
	img.Close()
	img.Close()
	assert.Error(t, img.Resize(2, 2, source.EncodingBGR))
}
