// Package sim is an in-process camera implementing hw.Driver. It allocates
// real buffers, honours the enable/disable and buffer queue rules of a
// hardware port, and delivers synthetic frames either on a timer or when
// Emit is called.
package sim

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"picam/hw"
)

const (
	PortPreview = 0
	PortVideo   = 1
	PortStill   = 2
)

type Options struct {
	// Outputs is the number of output ports exposed. Defaults to 3.
	Outputs int
	// NoControl hides the control port.
	NoControl bool

	// BufferNum and BufferNumRecommended are what each output reports
	// before negotiation. Both default to 1.
	BufferNum            int
	BufferNumRecommended int

	// PayloadOffset places the payload this many bytes into each buffer.
	PayloadOffset int
	// PayloadLength overrides the payload length of generated frames.
	PayloadLength int

	// FrameInterval drives delivery on a timer for capturing ports. Zero
	// means frames are only delivered by Emit.
	FrameInterval time.Duration

	// EventQueue is the capacity of the events channel. Defaults to 32.
	EventQueue int
}

// Driver is a simulated hw.Driver. Failures can be injected per operation
// with Fail; operation names are "create", "component.enable",
// "component.disable", "component.destroy", "lock" and "<port>.<op>" where
// <port> is "control" or "portN" and <op> is one of "enable", "disable",
// "format", "alloc", "send" or "param.<PARAMETER>".
type Driver struct {
	opts Options

	mu       sync.Mutex
	failures map[string]hw.Status
	cameras  []*Component
}

func New(opts *Options) *Driver {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.Outputs == 0 {
		o.Outputs = 3
	}
	if o.BufferNum == 0 {
		o.BufferNum = 1
	}
	if o.BufferNumRecommended == 0 {
		o.BufferNumRecommended = 1
	}
	if o.EventQueue == 0 {
		o.EventQueue = 32
	}
	return &Driver{
		opts:     o,
		failures: make(map[string]hw.Status),
	}
}

// Fail makes op report s from now on. StatusSuccess clears the failure.
func (d *Driver) Fail(op string, s hw.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.OK() {
		delete(d.failures, op)
		return
	}
	d.failures[op] = s
}

func (d *Driver) status(op string) hw.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.failures[op]; ok {
		return s
	}
	return hw.StatusSuccess
}

// Camera returns the most recently created component.
func (d *Driver) Camera() *Component {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.cameras) == 0 {
		return nil
	}
	return d.cameras[len(d.cameras)-1]
}

// Created returns how many components have been created.
func (d *Driver) Created() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cameras)
}

func (d *Driver) CreateCamera() (hw.Component, hw.Status) {
	if s := d.status("create"); !s.OK() {
		return nil, s
	}
	c := &Component{
		d:      d,
		events: make(chan hw.Event, d.opts.EventQueue),
		quit:   make(chan struct{}),
		owners: make(map[*hw.Buffer]*Port),
		locked: make(map[*hw.Buffer]bool),
	}
	if !d.opts.NoControl {
		c.control = newPort(c, hw.PortControl)
	}
	for i := 0; i < d.opts.Outputs; i++ {
		p := newPort(c, i)
		p.bufferNum = d.opts.BufferNum
		p.bufferRecommended = d.opts.BufferNumRecommended
		c.outputs = append(c.outputs, p)
	}

	d.mu.Lock()
	d.cameras = append(d.cameras, c)
	d.mu.Unlock()
	return c, hw.StatusSuccess
}

// Component is a simulated camera.
type Component struct {
	d      *Driver
	events chan hw.Event
	quit   chan struct{}
	seq    uint32

	control *Port
	outputs []*Port

	mu        sync.Mutex
	enabled   bool
	destroyed bool
	owners    map[*hw.Buffer]*Port
	locked    map[*hw.Buffer]bool
}

func (c *Component) Control() hw.Port {
	if c.control == nil {
		return nil
	}
	return c.control
}

func (c *Component) OutputNum() int {
	return len(c.outputs)
}

func (c *Component) Output(i int) hw.Port {
	if i < 0 || i >= len(c.outputs) {
		return nil
	}
	return c.outputs[i]
}

// OutputPort returns output i with its simulation accessors.
func (c *Component) OutputPort(i int) *Port {
	return c.outputs[i]
}

// ControlPort returns the control port, or nil.
func (c *Component) ControlPort() *Port {
	return c.control
}

func (c *Component) Enable() hw.Status {
	if s := c.d.status("component.enable"); !s.OK() {
		return s
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return hw.StatusEINVAL
	}
	c.enabled = true
	return hw.StatusSuccess
}

func (c *Component) Disable() hw.Status {
	if s := c.d.status("component.disable"); !s.OK() {
		return s
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
	return hw.StatusSuccess
}

func (c *Component) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Component) Destroy() hw.Status {
	if s := c.d.status("component.destroy"); !s.OK() {
		return s
	}
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return hw.StatusEINVAL
	}
	c.destroyed = true
	c.enabled = false
	c.mu.Unlock()

	for _, p := range c.outputs {
		p.shutdown()
	}
	if c.control != nil {
		c.control.shutdown()
	}
	close(c.quit)
	return hw.StatusSuccess
}

// Destroyed reports whether Destroy succeeded.
func (c *Component) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *Component) Events() <-chan hw.Event {
	return c.events
}

func (c *Component) LockBuffer(b *hw.Buffer) hw.Status {
	if s := c.d.status("lock"); !s.OK() {
		return s
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.owners[b]; !ok {
		return hw.StatusEINVAL
	}
	if c.locked[b] {
		return hw.StatusEAGAIN
	}
	c.locked[b] = true
	return hw.StatusSuccess
}

func (c *Component) UnlockBuffer(b *hw.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locked, b)
}

// Locked returns how many buffers are currently locked.
func (c *Component) Locked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locked)
}

// Allocated returns how many buffers are allocated across all ports.
func (c *Component) Allocated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.owners)
}

// Emit fills the next queued buffer of output port with a generated frame
// and delivers it. It returns false if the port is disabled or has no
// queued buffer.
func (c *Component) Emit(port int) bool {
	return c.outputs[port].emit(nil, nil)
}

// EmitData delivers data as the payload of the next queued buffer.
func (c *Component) EmitData(port int, data []byte) bool {
	return c.outputs[port].emit(nil, data)
}

// Inject delivers an arbitrary event, for buffers the driver never handed
// out or ports that do not exist.
func (c *Component) Inject(ev hw.Event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Component) notifySettings(exposure uint32) {
	if c.control == nil || !c.control.Enabled() {
		return
	}
	ev := hw.Event{
		Type: hw.EventParameterChanged,
		Port: hw.PortControl,
		Settings: &hw.CameraSettings{
			Exposure:    exposure,
			AnalogGain:  hw.ToRational(1),
			DigitalGain: hw.ToRational(1),
			AwbRedGain:  hw.ToRational(1),
			AwbBlueGain: hw.ToRational(1),
		},
	}
	select {
	case c.events <- ev:
	default:
	}
}

func frameSize(f hw.Format) int {
	switch f.Encoding {
	case hw.EncodingI420:
		return f.Width*f.Height + 2*((f.Width+1)/2)*((f.Height+1)/2)
	default:
		return f.Width * f.Height * 3
	}
}

// Port is a simulated port.
type Port struct {
	c     *Component
	index int

	mu                sync.Mutex
	format            hw.Format
	bufferNum         int
	bufferRecommended int
	bufferSize        int
	enabled           bool
	capture           bool
	queue             []*hw.Buffer
	sent              int
	params            map[hw.Parameter]interface{}
	stop              chan struct{}
	wg                sync.WaitGroup
}

func newPort(c *Component, index int) *Port {
	return &Port{
		c:      c,
		index:  index,
		params: make(map[hw.Parameter]interface{}),
		format: hw.Format{
			Encoding:  hw.EncodingI420,
			Width:     640,
			Height:    480,
			Crop:      image.Rect(0, 0, 640, 480),
			FrameRate: hw.Rational{Num: 30, Den: 1},
		},
	}
}

func (p *Port) name() string {
	if p.index == hw.PortControl {
		return "control"
	}
	return fmt.Sprintf("port%d", p.index)
}

func (p *Port) status(op string) hw.Status {
	return p.c.d.status(p.name() + "." + op)
}

func (p *Port) Index() int {
	return p.index
}

func (p *Port) Format() hw.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.format
}

func (p *Port) CommitFormat(f hw.Format) hw.Status {
	if s := p.status("format"); !s.OK() {
		return s
	}
	if f.Width <= 0 || f.Height <= 0 {
		return hw.StatusEINVAL
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.format = f
	p.bufferSize = frameSize(f) + p.c.d.opts.PayloadOffset
	return hw.StatusSuccess
}

func (p *Port) BufferNum() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bufferNum
}

func (p *Port) SetBufferNum(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bufferNum = n
}

func (p *Port) BufferNumRecommended() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bufferRecommended
}

func (p *Port) BufferSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bufferSize
}

func (p *Port) Enable() hw.Status {
	if s := p.status("enable"); !s.OK() {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return hw.StatusEINVAL
	}
	p.enabled = true
	if interval := p.c.d.opts.FrameInterval; interval > 0 && p.index != hw.PortControl {
		p.stop = make(chan struct{})
		if p.index != PortStill {
			p.wg.Add(1)
			go p.generate(p.stop, interval)
		}
	}
	return hw.StatusSuccess
}

func (p *Port) Disable() hw.Status {
	if s := p.status("disable"); !s.OK() {
		return s
	}
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return hw.StatusEINVAL
	}
	p.mu.Unlock()
	p.shutdown()
	return hw.StatusSuccess
}

// shutdown disables the port and waits for its generators to exit. Buffers
// still queued are dropped; their owner frees them.
func (p *Port) shutdown() {
	p.mu.Lock()
	p.enabled = false
	p.capture = false
	p.queue = nil
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	p.wg.Wait()
}

func (p *Port) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *Port) AllocateBuffers(num, size int) ([]*hw.Buffer, hw.Status) {
	if s := p.status("alloc"); !s.OK() {
		return nil, s
	}
	if num <= 0 || size <= 0 {
		return nil, hw.StatusEINVAL
	}
	bufs := make([]*hw.Buffer, num)
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	for i := range bufs {
		bufs[i] = &hw.Buffer{Data: make([]byte, size)}
		p.c.owners[bufs[i]] = p
	}
	return bufs, hw.StatusSuccess
}

func (p *Port) FreeBuffers(bufs []*hw.Buffer) {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	for _, b := range bufs {
		delete(p.c.owners, b)
		delete(p.c.locked, b)
	}
}

func (p *Port) SendBuffer(b *hw.Buffer) hw.Status {
	if s := p.status("send"); !s.OK() {
		return s
	}
	p.c.mu.Lock()
	owner := p.c.owners[b]
	p.c.mu.Unlock()
	if owner != p {
		return hw.StatusEINVAL
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return hw.StatusENOTREADY
	}
	p.queue = append(p.queue, b)
	p.sent++
	return hw.StatusSuccess
}

// Sent returns how many buffers were sent to the port since creation.
func (p *Port) Sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Queued returns how many buffers wait to be filled.
func (p *Port) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Capturing reports whether CAPTURE is set on the port.
func (p *Port) Capturing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capture
}

// Param returns the last value set for param.
func (p *Port) Param(param hw.Parameter) (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.params[param]
	return v, ok
}

func (p *Port) setParam(param hw.Parameter, v interface{}) hw.Status {
	if s := p.status("param." + param.String()); !s.OK() {
		return s
	}
	p.mu.Lock()
	p.params[param] = v
	p.mu.Unlock()
	if p.index == hw.PortControl {
		var exposure uint32
		if param == hw.ParamShutterSpeed {
			exposure, _ = v.(uint32)
		}
		p.c.notifySettings(exposure)
	}
	return hw.StatusSuccess
}

func (p *Port) SetBool(param hw.Parameter, v bool) hw.Status {
	if s := p.setParam(param, v); !s.OK() {
		return s
	}
	if param != hw.ParamCapture || p.index == hw.PortControl {
		return hw.StatusSuccess
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.capture = v
	// Still capture is one-shot: a frame is produced per trigger.
	if v && p.index == PortStill && p.stop != nil {
		p.wg.Add(1)
		go func(stop chan struct{}) {
			defer p.wg.Done()
			p.emit(stop, nil)
		}(p.stop)
	}
	return hw.StatusSuccess
}

func (p *Port) SetUint32(param hw.Parameter, v uint32) hw.Status {
	return p.setParam(param, v)
}

func (p *Port) SetRational(param hw.Parameter, v hw.Rational) hw.Status {
	return p.setParam(param, v)
}

func (p *Port) SetParameter(v hw.Param) hw.Status {
	if v == nil {
		return hw.StatusEINVAL
	}
	return p.setParam(v.ID(), v)
}

func (p *Port) generate(stop chan struct{}, interval time.Duration) {
	defer p.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if p.Capturing() {
				p.emit(stop, nil)
			}
		}
	}
}

func (p *Port) emit(stop chan struct{}, data []byte) bool {
	p.mu.Lock()
	if !p.enabled || len(p.queue) == 0 {
		p.mu.Unlock()
		return false
	}
	b := p.queue[0]
	p.queue = p.queue[1:]
	f := p.format
	p.mu.Unlock()

	p.fill(b, f, data)

	select {
	case p.c.events <- hw.Event{Type: hw.EventBuffer, Port: p.index, Buffer: b}:
		return true
	case <-stop:
	case <-p.c.quit:
	}
	return false
}

// fill writes a payload into b. Generated frames carry one byte value per
// frame, counting up from 1.
func (p *Port) fill(b *hw.Buffer, f hw.Format, data []byte) {
	opts := p.c.d.opts
	b.Offset = opts.PayloadOffset
	if b.Offset > len(b.Data) {
		b.Offset = len(b.Data)
	}
	room := len(b.Data) - b.Offset

	if data != nil {
		b.Length = copy(b.Data[b.Offset:], data)
		return
	}

	n := frameSize(f)
	if opts.PayloadLength > 0 {
		n = opts.PayloadLength
	}
	if n > room {
		n = room
	}
	v := byte(atomic.AddUint32(&p.c.seq, 1))
	if v == 0 {
		v = byte(atomic.AddUint32(&p.c.seq, 1))
	}
	payload := b.Data[b.Offset : b.Offset+n]
	for i := range payload {
		payload[i] = v
	}
	b.Length = n
}
