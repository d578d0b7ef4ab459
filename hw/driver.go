// Package hw defines the capability a camera driver must provide to the
// capture pipeline. Every driver call reports a Status; buffer completions
// are delivered as Events on a channel rather than through callbacks.
package hw

// PortControl is the Event.Port value for events from the control port.
const PortControl = -1

// Buffer is one hardware memory region exchanged between the driver and
// the pipeline. The payload occupies Data[Offset : Offset+Length].
type Buffer struct {
	Data   []byte
	Offset int
	Length int
}

// Payload returns the valid bytes of the buffer, clamped to Data.
func (b *Buffer) Payload() []byte {
	end := b.Offset + b.Length
	if b.Offset < 0 || b.Offset > len(b.Data) {
		return nil
	}
	if end > len(b.Data) {
		end = len(b.Data)
	}
	return b.Data[b.Offset:end]
}

// EventType distinguishes completed buffers from control notifications.
type EventType int

const (
	EventBuffer EventType = iota
	EventParameterChanged
)

// Event reports a completed buffer or a control notification.
type Event struct {
	Type EventType
	// Port is the output index that produced Buffer, or PortControl.
	Port   int
	Buffer *Buffer
	// Settings is set for EventParameterChanged.
	Settings *CameraSettings
}

// Driver creates camera components.
type Driver interface {
	CreateCamera() (Component, Status)
}

// Component is one camera instance with a control port and outputs.
type Component interface {
	// Control returns the control port, or nil if the camera has none.
	Control() Port
	OutputNum() int
	// Output returns output i, or nil if it is not exposed.
	Output(i int) Port

	Enable() Status
	Disable() Status
	Enabled() bool
	Destroy() Status

	// Events delivers completions for every enabled port.
	Events() <-chan Event

	LockBuffer(b *Buffer) Status
	UnlockBuffer(b *Buffer)
}

// Port is a control or output port of a Component.
type Port interface {
	Index() int

	Format() Format
	CommitFormat(f Format) Status

	BufferNum() int
	SetBufferNum(n int)
	BufferNumRecommended() int
	BufferSize() int

	// Enable starts delivering completions for this port on the
	// component's Events channel.
	Enable() Status
	Disable() Status
	Enabled() bool

	AllocateBuffers(num, size int) ([]*Buffer, Status)
	FreeBuffers(bufs []*Buffer)
	SendBuffer(b *Buffer) Status

	SetBool(p Parameter, v bool) Status
	SetUint32(p Parameter, v uint32) Status
	SetRational(p Parameter, v Rational) Status
	SetParameter(v Param) Status
}
