// Package cvmat provides a source.Image backed by an OpenCV Mat.
package cvmat

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"picam/video/source"
)

// Image is a source.Image backed by an OpenCV Mat. Time is stamped on every
// successful resize so callers can tell when the image was last filled.
type Image struct {
	Mat    gocv.Mat
	Time   time.Time
	closed bool
}

func New() *Image {
	return &Image{
		Mat: gocv.NewMat(),
	}
}

func matType(enc source.Encoding) gocv.MatType {
	if enc == source.EncodingGrayscale {
		return gocv.MatTypeCV8UC1
	}
	return gocv.MatTypeCV8UC3
}

func (i *Image) Resize(width, height int, enc source.Encoding) error {
	if i.closed {
		return fmt.Errorf("image already closed")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}
	t := matType(enc)
	if i.Mat.Empty() || i.Mat.Cols() != width || i.Mat.Rows() != height || i.Mat.Type() != t {
		i.Mat.Close()
		i.Mat = gocv.NewMatWithSize(height, width, t)
	}
	i.Time = time.Now()
	return nil
}

func (i *Image) Bytes() []byte {
	b, err := i.Mat.DataPtrUint8()
	if err != nil {
		return nil
	}
	return b
}

func (i *Image) Continuous() bool {
	return i.Mat.IsContinuous()
}

func (i *Image) Len() int {
	return i.Mat.Total() * i.Mat.ElemSize()
}

// Mean returns the average of the first channel.
func (i *Image) Mean() float64 {
	return i.Mat.Mean().Val1
}

func (i *Image) Close() {
	if i.closed {
		return
	}
	i.closed = true
	i.Mat.Close()
}
