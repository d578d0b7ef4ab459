package hw

import (
	"fmt"
	"image"
)

// Parameter identifies a driver parameter on a port.
type Parameter uint32

const (
	ParamCapture Parameter = iota + 0x10000
	ParamShutterSpeed
	ParamISO
	ParamAnalogGain
	ParamDigitalGain
	ParamCustomAwbGains
	ParamFpsRange
	ParamAwbMode
	ParamCameraConfig
	ParamChangeEventRequest
	ParamCameraSettings
	ParamCustomSensorConfig
)

var paramNames = map[Parameter]string{
	ParamCustomSensorConfig: "CAMERA_CUSTOM_SENSOR_CONFIG",
	ParamCapture:            "CAPTURE",
	ParamShutterSpeed:       "SHUTTER_SPEED",
	ParamISO:                "ISO",
	ParamAnalogGain:         "ANALOG_GAIN",
	ParamDigitalGain:        "DIGITAL_GAIN",
	ParamCustomAwbGains:     "CUSTOM_AWB_GAINS",
	ParamFpsRange:           "FPS_RANGE",
	ParamAwbMode:            "AWB_MODE",
	ParamCameraConfig:       "CAMERA_CONFIG",
	ParamChangeEventRequest: "CHANGE_EVENT_REQUEST",
	ParamCameraSettings:     "CAMERA_SETTINGS",
}

func (p Parameter) String() string {
	if n, ok := paramNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Unknown parameter [%d]", uint32(p))
}

// Param is a structured parameter value, set with Port.SetParameter.
type Param interface {
	ID() Parameter
}

// TimestampMode selects how the camera stamps buffers.
type TimestampMode int

const (
	TimestampZero TimestampMode = iota
	TimestampRawSTC
	TimestampResetSTC
)

// CameraConfig is the camera-wide configuration applied before the
// component is enabled.
type CameraConfig struct {
	MaxStillsW, MaxStillsH             int
	StillsYUV422                       bool
	OneShotStills                      bool
	MaxPreviewVideoW, MaxPreviewVideoH int
	NumPreviewVideoFrames              int
	StillsCaptureCircularBufferHeight  int
	FastPreviewResume                  bool
	Timestamp                          TimestampMode
}

func (CameraConfig) ID() Parameter { return ParamCameraConfig }

// ChangeEventRequest asks the control port to report changes of Change.
type ChangeEventRequest struct {
	Change Parameter
	Enable bool
}

func (ChangeEventRequest) ID() Parameter { return ParamChangeEventRequest }

// AwbMode is the white balance preset.
type AwbMode int

const (
	AwbOff AwbMode = iota
	AwbAuto
	AwbSunlight
	AwbCloudy
	AwbShade
	AwbTungsten
	AwbFluorescent
	AwbIncandescent
	AwbFlash
	AwbHorizon
)

var awbNames = []string{"off", "auto", "sunlight", "cloudy", "shade", "tungsten", "fluorescent", "incandescent", "flash", "horizon"}

func (m AwbMode) String() string {
	if m >= 0 && int(m) < len(awbNames) {
		return awbNames[m]
	}
	return fmt.Sprintf("AwbMode(%d)", int(m))
}

// ParseAwbMode returns the mode named s, as printed by AwbMode.String.
func ParseAwbMode(s string) (AwbMode, error) {
	for i, n := range awbNames {
		if n == s {
			return AwbMode(i), nil
		}
	}
	return AwbAuto, fmt.Errorf("unknown AWB mode %q", s)
}

// AwbModeParam sets the white balance preset.
type AwbModeParam struct {
	Mode AwbMode
}

func (AwbModeParam) ID() Parameter { return ParamAwbMode }

// AwbGains sets custom red and blue gains; only honoured with AwbOff.
type AwbGains struct {
	Red, Blue Rational
}

func (AwbGains) ID() Parameter { return ParamCustomAwbGains }

// FpsRange bounds the frame rate of a port.
type FpsRange struct {
	Low, High Rational
}

func (FpsRange) ID() Parameter { return ParamFpsRange }

// CameraSettings is reported by the control port when exposure settles.
type CameraSettings struct {
	Exposure      uint32
	AnalogGain    Rational
	DigitalGain   Rational
	AwbRedGain    Rational
	AwbBlueGain   Rational
	FocusPosition uint32
}

// Encoding is a fourcc pixel encoding understood by the driver.
type Encoding uint32

func fourcc(s string) Encoding {
	return Encoding(uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24)
}

var (
	EncodingBGR24 = fourcc("BGR3")
	EncodingI420  = fourcc("I420")
)

func (e Encoding) String() string {
	return string([]byte{byte(e), byte(e >> 8), byte(e >> 16), byte(e >> 24)})
}

// Format is the elementary stream format negotiated on a port.
type Format struct {
	Encoding        Encoding
	EncodingVariant Encoding
	Width, Height   int
	Crop            image.Rectangle
	FrameRate       Rational
}
