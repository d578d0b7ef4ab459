package video

import (
	"errors"
	"fmt"

	"picam/hw"
	"picam/util"
)

var (
	// ErrTimeout is returned by grabs that exceed their bound.
	ErrTimeout = util.ErrTimeout
	// ErrPortUnavailable means the camera does not expose the output.
	ErrPortUnavailable = errors.New("port is not available")
	// ErrBufferLock is matched by every *BufferLockError.
	ErrBufferLock = errors.New("unable to lock buffer")
	// ErrNotContiguous rejects decode targets with padded rows.
	ErrNotContiguous = errors.New("image is not contiguous")
)

// StatusError is a driver call that did not succeed.
type StatusError struct {
	Status  hw.Status
	Context string
}

func (e *StatusError) Error() string {
	return e.Context + ": " + e.Status.String()
}

func (e *StatusError) Unwrap() error {
	return e.Status
}

// checkStatus converts a driver status into a *StatusError.
func checkStatus(s hw.Status, format string, args ...interface{}) error {
	if s.OK() {
		return nil
	}
	return &StatusError{Status: s, Context: fmt.Sprintf(format, args...)}
}

// StateError is an operation invoked before its precondition holds.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string {
	return e.Msg
}

// BufferLockError is a completed buffer whose memory could not be locked.
type BufferLockError struct {
	Status hw.Status
}

func (e *BufferLockError) Error() string {
	return fmt.Sprintf("%v: %v", ErrBufferLock, e.Status)
}

func (e *BufferLockError) Is(target error) bool {
	return target == ErrBufferLock
}

// BufferTooSmallError is a payload shorter than the decoded image needs.
type BufferTooSmallError struct {
	Have, Need int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("buffer size [%d] too small for image size [%d]", e.Have, e.Need)
}
