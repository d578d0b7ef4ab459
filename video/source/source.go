package source

import (
	"fmt"
)

// Encoding is the pixel layout a camera decodes into.
type Encoding int

const (
	// EncodingBGR is packed 8-bit blue, green, red.
	EncodingBGR Encoding = iota
	// EncodingGrayscale is the 8-bit luma plane.
	EncodingGrayscale
)

// BytesPerPixel returns the size of one decoded pixel.
func (e Encoding) BytesPerPixel() int {
	switch e {
	case EncodingGrayscale:
		return 1
	default:
		return 3
	}
}

func (e Encoding) String() string {
	switch e {
	case EncodingBGR:
		return "bgr"
	case EncodingGrayscale:
		return "grayscale"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "bgr", "":
		return EncodingBGR, nil
	case "grayscale", "gray":
		return EncodingGrayscale, nil
	}
	return EncodingBGR, fmt.Errorf("unknown encoding %q", s)
}

// Image is a caller-owned decode target. The pipeline resizes it to the
// negotiated shape and writes the payload into Bytes in place.
type Image interface {
	// Resize reshapes the image; it may keep the existing storage when the
	// shape is unchanged.
	Resize(width, height int, enc Encoding) error
	// Bytes returns the pixel storage. Only valid when Continuous is true.
	Bytes() []byte
	// Continuous reports whether rows are stored back to back.
	Continuous() bool
	// Len is the number of pixel bytes.
	Len() int
}

// Frame is an Image held in a Go slice. It is always continuous.
type Frame struct {
	Width, Height int
	Encoding      Encoding
	Pix           []byte
}

func NewFrame() *Frame {
	return &Frame{}
}

func (f *Frame) Resize(width, height int, enc Encoding) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	n := width * height * enc.BytesPerPixel()
	if cap(f.Pix) < n {
		f.Pix = make([]byte, n)
	}
	f.Pix = f.Pix[:n]
	f.Width, f.Height, f.Encoding = width, height, enc
	return nil
}

func (f *Frame) Bytes() []byte {
	return f.Pix
}

func (f *Frame) Continuous() bool {
	return true
}

func (f *Frame) Len() int {
	return len(f.Pix)
}

// Mean returns the average byte value of the frame.
func (f *Frame) Mean() float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	var total uint64
	for _, v := range f.Pix {
		total += uint64(v)
	}
	return float64(total) / float64(len(f.Pix))
}
