package video

import (
	"errors"
	"fmt"

	"picam/config"
	"picam/hw"
	"picam/video/source"
)

func (c *Camera) setBool(p hw.Port, param hw.Parameter, v bool) error {
	c.log.Debugf("Setting parameter [%v] to [%v]", param, v)
	return checkStatus(p.SetBool(param, v), "unable to set boolean parameter [%v] to [%v]", param, v)
}

func (c *Camera) setUint32(p hw.Port, param hw.Parameter, v uint32) error {
	c.log.Debugf("Setting parameter [%v] to [%d]", param, v)
	return checkStatus(p.SetUint32(param, v), "unable to set unsigned int parameter [%v] to [%d]", param, v)
}

func (c *Camera) setRational(p hw.Port, param hw.Parameter, v float32) error {
	c.log.Debugf("Setting parameter [%v] to [%v]", param, v)
	return checkStatus(p.SetRational(param, hw.ToRational(v)), "unable to set rational parameter [%v] to [%v]", param, v)
}

func (c *Camera) setParam(p hw.Port, v hw.Param) error {
	c.log.Debugf("Setting parameter [%v] to [%+v]", v.ID(), v)
	return checkStatus(p.SetParameter(v), "unable to set parameter [%v]", v.ID())
}

// control returns the control port of a created camera. c.mu must be held.
func (c *Camera) control() (hw.Port, error) {
	if c.comp == nil {
		return nil, &StateError{Msg: "camera must be created first"}
	}
	p := c.comp.Control()
	if p == nil {
		return nil, fmt.Errorf("control port: %w", ErrPortUnavailable)
	}
	return p, nil
}

func (c *Camera) SetSensorMode(mode uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.control()
	if err != nil {
		return err
	}
	return c.setUint32(p, hw.ParamCustomSensorConfig, mode)
}

// SetEncoding selects the pixel layout of every port opened afterwards.
// It does not need a created camera.
func (c *Camera) SetEncoding(enc source.Encoding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encoding = enc
}

func (c *Camera) Encoding() source.Encoding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoding
}

// SetShutterSpeed sets the exposure time in milliseconds.
func (c *Camera) SetShutterSpeed(millis uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.control()
	if err != nil {
		return err
	}
	return c.setUint32(p, hw.ParamShutterSpeed, 1000*millis)
}

func (c *Camera) SetIso(iso uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.control()
	if err != nil {
		return err
	}
	return c.setUint32(p, hw.ParamISO, iso)
}

func (c *Camera) SetAnalogGain(gain float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.control()
	if err != nil {
		return err
	}
	return c.setRational(p, hw.ParamAnalogGain, gain)
}

func (c *Camera) SetDigitalGain(gain float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.control()
	if err != nil {
		return err
	}
	return c.setRational(p, hw.ParamDigitalGain, gain)
}

func (c *Camera) SetWhiteBalanceMode(mode hw.AwbMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.control()
	if err != nil {
		return err
	}
	c.log.Debugf("Setting AWB mode to [%v]", mode)
	return checkStatus(p.SetParameter(hw.AwbModeParam{Mode: mode}), "unable to set AWB mode")
}

// SetWhiteBalanceGain sets custom red and blue gains. The camera only uses
// them while the AWB mode is off.
func (c *Camera) SetWhiteBalanceGain(red, blue float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.control()
	if err != nil {
		return err
	}
	c.log.Debugf("Setting AWB gains to red [%v] blue [%v]", red, blue)
	gains := hw.AwbGains{Red: hw.ToRational(red), Blue: hw.ToRational(blue)}
	return checkStatus(p.SetParameter(gains), "unable to set gains for AWB")
}

// SetFpsRange bounds the frame rate of the preview port and, when video is
// open, of the video port.
func (c *Camera) SetFpsRange(minFps, maxFps float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.control(); err != nil {
		return err
	}
	preview := c.comp.Output(PortPreview.Index())
	if preview == nil {
		return fmt.Errorf("%v port: %w", PortPreview, ErrPortUnavailable)
	}
	c.log.Debugf("Setting FPS range to [%v, %v]", minFps, maxFps)
	r := hw.FpsRange{Low: hw.ToRational(minFps), High: hw.ToRational(maxFps)}
	if err := checkStatus(preview.SetParameter(r), "unable to set FPS range on preview port"); err != nil {
		return err
	}
	if op := c.port(PortVideo); op != nil {
		return checkStatus(op.port.SetParameter(r), "unable to set FPS range on video port")
	}
	return nil
}

// Apply sets the encoding and every exposure option present in cfg. All
// options are attempted; the failures are joined.
func (c *Camera) Apply(cfg *config.Config) error {
	enc, err := cfg.PixelEncoding()
	if err != nil {
		return err
	}
	c.SetEncoding(enc)

	var errs []error
	if cfg.SensorMode != nil {
		errs = append(errs, c.SetSensorMode(*cfg.SensorMode))
	}
	if cfg.ShutterSpeedMs != nil {
		errs = append(errs, c.SetShutterSpeed(*cfg.ShutterSpeedMs))
	}
	if cfg.ISO != nil {
		errs = append(errs, c.SetIso(*cfg.ISO))
	}
	if cfg.AnalogGain != nil {
		errs = append(errs, c.SetAnalogGain(*cfg.AnalogGain))
	}
	if cfg.DigitalGain != nil {
		errs = append(errs, c.SetDigitalGain(*cfg.DigitalGain))
	}
	if cfg.AwbMode != "" {
		mode, err := hw.ParseAwbMode(cfg.AwbMode)
		if err == nil {
			err = c.SetWhiteBalanceMode(mode)
		}
		errs = append(errs, err)
	}
	if cfg.AwbRedGain != nil && cfg.AwbBlueGain != nil {
		errs = append(errs, c.SetWhiteBalanceGain(*cfg.AwbRedGain, *cfg.AwbBlueGain))
	}
	if cfg.FpsMin != nil && cfg.FpsMax != nil {
		errs = append(errs, c.SetFpsRange(*cfg.FpsMin, *cfg.FpsMax))
	}
	return errors.Join(errs...)
}

// OptionsFromConfig returns camera options built from cfg.
func OptionsFromConfig(cfg *config.Config) (*Options, error) {
	enc, err := cfg.PixelEncoding()
	if err != nil {
		return nil, err
	}
	return &Options{
		Width:         cfg.Width,
		Height:        cfg.Height,
		PreviewFrames: cfg.PreviewFrames,
		Fps:           cfg.Fps,
		Encoding:      enc,
		FrameTimeout:  cfg.FrameTimeout.Duration(),
		StillTimeout:  cfg.StillTimeout.Duration(),
	}, nil
}
