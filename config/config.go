package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"picam/hw"
	"picam/video/source"
)

// Duration is a time.Duration written in configuration files as a string
// such as "30s", or as a number of seconds.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*d = Duration(t * float64(time.Second))
	case string:
		p, err := time.ParseDuration(t)
		if err != nil {
			return err
		}
		*d = Duration(p)
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}

type Config struct {
	Width         int      `json:"width"`
	Height        int      `json:"height"`
	Encoding      string   `json:"encoding"`
	PreviewFrames int      `json:"preview_frames"`
	Fps           int      `json:"fps"`
	FrameTimeout  Duration `json:"frame_timeout"`
	StillTimeout  Duration `json:"still_timeout"`

	// Exposure options are only applied when set.
	SensorMode     *uint32  `json:"sensor_mode,omitempty"`
	ShutterSpeedMs *uint32  `json:"shutter_speed_ms,omitempty"`
	ISO            *uint32  `json:"iso,omitempty"`
	AnalogGain     *float32 `json:"analog_gain,omitempty"`
	DigitalGain    *float32 `json:"digital_gain,omitempty"`
	AwbMode        string   `json:"awb_mode,omitempty"`
	AwbRedGain     *float32 `json:"awb_red_gain,omitempty"`
	AwbBlueGain    *float32 `json:"awb_blue_gain,omitempty"`
	FpsMin         *float32 `json:"fps_min,omitempty"`
	FpsMax         *float32 `json:"fps_max,omitempty"`
}

func Default() *Config {
	return &Config{
		Width:         1280,
		Height:        720,
		Encoding:      source.EncodingBGR.String(),
		PreviewFrames: 3,
		FrameTimeout:  Duration(30 * time.Second),
		StillTimeout:  Duration(5 * time.Second),
	}
}

// PixelEncoding parses Encoding.
func (c *Config) PixelEncoding() (source.Encoding, error) {
	return source.ParseEncoding(c.Encoding)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", c.Width, c.Height)
	}
	if _, err := c.PixelEncoding(); err != nil {
		return err
	}
	if c.PreviewFrames < 0 || c.Fps < 0 {
		return errors.New("preview_frames and fps must not be negative")
	}
	if c.FrameTimeout < 0 || c.StillTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.AwbMode != "" {
		if _, err := hw.ParseAwbMode(c.AwbMode); err != nil {
			return err
		}
	}
	if (c.AwbRedGain == nil) != (c.AwbBlueGain == nil) {
		return errors.New("awb_red_gain and awb_blue_gain must be set together")
	}
	if (c.FpsMin == nil) != (c.FpsMax == nil) {
		return errors.New("fps_min and fps_max must be set together")
	}
	if c.FpsMin != nil && *c.FpsMin > *c.FpsMax {
		return fmt.Errorf("inverted fps range [%v, %v]", *c.FpsMin, *c.FpsMax)
	}
	return nil
}
