package video

import (
	"picam/hw"
	"picam/video/source"
)

// decode reshapes target and copies the frame payload of b into it. The
// payload is copied only when it holds at least a whole frame, and exactly
// one frame's worth of bytes is copied.
func decode(b *hw.Buffer, target source.Image, width, height int, enc source.Encoding) error {
	if err := target.Resize(width, height, enc); err != nil {
		return err
	}
	need := width * height * enc.BytesPerPixel()
	if b.Length < need || b.Offset < 0 || b.Offset+need > len(b.Data) {
		return &BufferTooSmallError{Have: b.Length, Need: need}
	}
	if !target.Continuous() {
		return ErrNotContiguous
	}
	dst := target.Bytes()
	if len(dst) < need {
		return &BufferTooSmallError{Have: len(dst), Need: need}
	}
	copy(dst[:need], b.Data[b.Offset:b.Offset+need])
	return nil
}

// hwEncoding is the port encoding that decodes into enc. Grayscale is read
// from the luma plane of I420.
func hwEncoding(enc source.Encoding) hw.Encoding {
	if enc == source.EncodingGrayscale {
		return hw.EncodingI420
	}
	return hw.EncodingBGR24
}
