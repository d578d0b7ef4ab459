package video

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"picam/hw"
	"picam/util"
	"picam/video/source"
)

const (
	DefaultWidth         = 1280
	DefaultHeight        = 720
	DefaultPreviewFrames = 3
	DefaultFrameTimeout  = 30 * time.Second
	DefaultStillTimeout  = 5 * time.Second
)

// Options configure a Camera. The zero value of every field selects its
// default.
type Options struct {
	Logger  log.FieldLogger
	Metrics *Metrics

	Width, Height int
	// PreviewFrames is the number of frames the camera keeps for the
	// preview and video ports.
	PreviewFrames int
	// Fps is the frame rate committed on the video port. Zero lets the
	// camera choose.
	Fps      int
	Encoding source.Encoding

	FrameTimeout time.Duration
	StillTimeout time.Duration
}

// State is the lifecycle state of a Camera.
type State uint8

const StateUninitialized State = 0

const (
	StateCreated State = 1 << iota
	StateVideoOpen
	StateStillOpen
)

// Has reports whether every flag in f is set.
func (s State) Has(f State) bool {
	return s&f == f
}

func (s State) String() string {
	if s == StateUninitialized {
		return "uninitialized"
	}
	var parts []string
	if s.Has(StateCreated) {
		parts = append(parts, "created")
	}
	if s.Has(StateVideoOpen) {
		parts = append(parts, "video")
	}
	if s.Has(StateStillOpen) {
		parts = append(parts, "still")
	}
	return strings.Join(parts, "+")
}

// Camera turns the asynchronous outputs of a hw.Component into blocking
// frame and still grabs.
type Camera struct {
	driver  hw.Driver
	log     *log.Entry
	metrics *Metrics

	frameTimeout time.Duration
	stillTimeout time.Duration

	// mu serializes lifecycle and parameter calls. The dispatcher never
	// takes it.
	mu            sync.Mutex
	comp          hw.Component
	width, height int
	previewFrames int
	fps           int
	encoding      source.Encoding
	quit          chan struct{}
	done          chan struct{}

	ports atomic.Pointer[portSet]

	requests   *Requests
	videoEvent *util.Event

	stillGrab  sync.Mutex
	still      stillSlot
	stillEvent *util.Event
}

func NewCamera(driver hw.Driver, opts *Options) *Camera {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = log.StandardLogger()
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.PreviewFrames <= 0 {
		o.PreviewFrames = DefaultPreviewFrames
	}
	if o.FrameTimeout <= 0 {
		o.FrameTimeout = DefaultFrameTimeout
	}
	if o.StillTimeout <= 0 {
		o.StillTimeout = DefaultStillTimeout
	}
	return &Camera{
		driver:        driver,
		log:           o.Logger.WithField("component", "camera"),
		metrics:       o.Metrics,
		frameTimeout:  o.FrameTimeout,
		stillTimeout:  o.StillTimeout,
		width:         o.Width,
		height:        o.Height,
		previewFrames: o.PreviewFrames,
		fps:           o.Fps,
		encoding:      o.Encoding,
		requests:      NewRequests(),
		videoEvent:    util.NewEvent(),
		stillEvent:    util.NewEvent(),
	}
}

func (c *Camera) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.comp == nil {
		return StateUninitialized
	}
	s := StateCreated
	if c.port(PortVideo) != nil {
		s |= StateVideoOpen
	}
	if c.port(PortStill) != nil {
		s |= StateStillOpen
	}
	return s
}

// CreateCamera creates and enables the camera component and starts
// consuming its completions. Calling it on a created camera does nothing.
func (c *Camera) CreateCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.comp != nil {
		return nil
	}
	c.log.Trace("Creating camera")
	comp, s := c.driver.CreateCamera()
	if err := checkStatus(s, "unable to create camera component"); err != nil {
		return err
	}
	if comp == nil {
		return errors.New("driver returned no camera component")
	}
	c.comp = comp
	if err := c.setupCamera(); err != nil {
		c.log.WithError(err).Warn("Could not create camera")
		if derr := c.destroyCamera(); derr != nil {
			c.log.WithError(derr).Error("Failed to destroy camera after create failure")
		}
		return err
	}
	c.log.Debugf("Camera created, %dx%d %v", c.width, c.height, c.encoding)
	return nil
}

func (c *Camera) setupCamera() error {
	control := c.comp.Control()
	if control == nil {
		return fmt.Errorf("control port: %w", ErrPortUnavailable)
	}
	if c.comp.OutputNum() == 0 {
		return errors.New("camera has no output ports")
	}
	if err := c.setParam(control, hw.ChangeEventRequest{Change: hw.ParamCameraSettings, Enable: true}); err != nil {
		return err
	}
	if err := c.setParam(control, hw.CameraConfig{
		MaxStillsW:            c.width,
		MaxStillsH:            c.height,
		OneShotStills:         true,
		MaxPreviewVideoW:      c.width,
		MaxPreviewVideoH:      c.height,
		NumPreviewVideoFrames: c.previewFrames,
		Timestamp:             hw.TimestampResetSTC,
	}); err != nil {
		return err
	}

	// The dispatcher runs before any port is enabled so that no completion
	// sits in the driver's queue unobserved.
	c.quit = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.comp, c.quit, c.done)

	if err := checkStatus(control.Enable(), "unable to enable camera control port"); err != nil {
		return err
	}
	return checkStatus(c.comp.Enable(), "unable to enable camera")
}

// DestroyCamera closes both outputs and destroys the component. Calling it
// on a destroyed camera does nothing. Every step is attempted; the errors
// are joined.
func (c *Camera) DestroyCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyCamera()
}

func (c *Camera) destroyCamera() error {
	c.log.Trace("Destroying camera")
	errs := []error{
		c.closePort(PortVideo),
		c.closePort(PortStill),
	}
	if c.comp != nil {
		if c.comp.Enabled() {
			c.log.Trace("Disabling camera")
			errs = append(errs, checkStatus(c.comp.Disable(), "unable to disable camera"))
		}
		if c.quit != nil {
			close(c.quit)
			<-c.done
			c.quit, c.done = nil, nil
		}
		c.log.Trace("Destroying camera component")
		errs = append(errs, checkStatus(c.comp.Destroy(), "unable to destroy camera component"))
		c.comp = nil
	}
	return errors.Join(errs...)
}

// Close destroys the camera and logs, rather than returns, any failure.
func (c *Camera) Close() {
	if err := c.DestroyCamera(); err != nil {
		c.log.WithError(err).Error("Unable to destroy camera")
	}
}

// StartVideo opens the video output and starts capturing.
func (c *Camera) StartVideo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port(PortVideo) != nil {
		c.log.Trace("Video already started")
		return nil
	}
	if c.comp == nil {
		return &StateError{Msg: "cannot start video before camera was created"}
	}
	if err := c.openPort(PortVideo, MinVideoBuffers, c.fps); err != nil {
		c.log.WithError(err).Warn("Could not enable video port")
		return err
	}
	if err := c.setBool(c.port(PortVideo).port, hw.ParamCapture, true); err != nil {
		c.logRollback(PortVideo, c.closePort(PortVideo))
		return err
	}
	c.log.Trace("Video enabled")
	return nil
}

func (c *Camera) StopVideo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closePort(PortVideo)
}

// PendingFrames is the number of images waiting for a video frame.
func (c *Camera) PendingFrames() int {
	return c.requests.Len()
}

// GrabFrame blocks until the next video frame is decoded into img. It
// does not start video.
func (c *Camera) GrabFrame(img source.Image) error {
	return c.GrabFrameContext(context.Background(), img)
}

func (c *Camera) GrabFrameContext(ctx context.Context, img source.Image) (err error) {
	l := c.log.WithField("request", uuid.NewString())
	start := time.Now()
	defer func() { c.metrics.observeGrab("frame", start, err) }()

	l.Trace("Grabbing a frame")
	req := c.requests.Add(img)
	defer c.requests.Remove(req)

	err = c.videoEvent.WaitUntil(ctx, c.frameTimeout, func() bool {
		done, _ := c.requests.Done(req)
		return done
	})
	if err != nil {
		l.WithError(err).Warn("Frame grab failed")
		return err
	}
	_, err = c.requests.Done(req)
	if err != nil {
		return err
	}
	l.Trace("Grabbed a frame")
	return nil
}

// GrabStill triggers a still capture and blocks until it is decoded into
// img. The still output is opened on first use and stays open.
func (c *Camera) GrabStill(img source.Image) error {
	return c.GrabStillContext(context.Background(), img)
}

func (c *Camera) GrabStillContext(ctx context.Context, img source.Image) (err error) {
	c.stillGrab.Lock()
	defer c.stillGrab.Unlock()

	l := c.log.WithField("request", uuid.NewString())
	start := time.Now()
	defer func() { c.metrics.observeGrab("still", start, err) }()
	l.Debug("Grabbing still")

	req, err := c.triggerStill(img)
	if err != nil {
		return err
	}
	defer c.still.Clear()

	l.Trace("Waiting for the still")
	err = c.stillEvent.WaitUntil(ctx, c.stillTimeout, func() bool {
		done, _ := c.still.Done(req)
		return done
	})
	if err == nil {
		_, err = c.still.Done(req)
	}
	if err != nil {
		l.WithError(err).Error("Something went wrong while taking still")
		c.mu.Lock()
		c.logRollback(PortStill, c.closePort(PortStill))
		c.mu.Unlock()
		return err
	}
	l.Trace("Grabbed a still")
	return nil
}

// triggerStill opens the still output if needed, makes img the pending
// still target and starts the capture.
func (c *Camera) triggerStill(img source.Image) (*request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.comp == nil {
		return nil, &StateError{Msg: "cannot take still before camera was created"}
	}
	if c.comp.Output(PortStill.Index()) == nil {
		return nil, fmt.Errorf("%v port: %w", PortStill, ErrPortUnavailable)
	}
	if err := c.openPort(PortStill, MinStillBuffers, 0); err != nil {
		return nil, err
	}
	req := c.still.Set(img)
	c.log.Trace("Enabling capture on still port")
	if err := c.setBool(c.port(PortStill).port, hw.ParamCapture, true); err != nil {
		c.still.Clear()
		c.logRollback(PortStill, c.closePort(PortStill))
		return nil, err
	}
	return req, nil
}

// SetResolution changes the frame size used by the next create and port
// open.
func (c *Camera) SetResolution(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", width, height)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireClosed("resolution"); err != nil {
		return err
	}
	c.width, c.height = width, height
	return nil
}

// SetFps changes the frame rate committed on the next video open.
func (c *Camera) SetFps(fps int) error {
	if fps < 0 {
		return fmt.Errorf("invalid frame rate %d", fps)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireClosed("frame rate"); err != nil {
		return err
	}
	c.fps = fps
	return nil
}

func (c *Camera) requireClosed(what string) error {
	if c.port(PortVideo) != nil || c.port(PortStill) != nil {
		return &StateError{Msg: fmt.Sprintf("cannot change %s while a port is open", what)}
	}
	return nil
}
