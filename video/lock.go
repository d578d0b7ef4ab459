package video

import (
	"picam/hw"
)

// BufferLocker is the part of a driver that maps buffer memory.
type BufferLocker interface {
	LockBuffer(b *hw.Buffer) hw.Status
	UnlockBuffer(b *hw.Buffer)
}

// BufferLock holds a buffer's memory locked until Unlock. Unlock may be
// called any number of times; only the first call reaches the driver, so
// an explicit Unlock can be paired with a deferred one.
type BufferLock struct {
	l   BufferLocker
	buf *hw.Buffer
}

// LockBuffer locks b. On failure nothing is left locked.
func LockBuffer(l BufferLocker, b *hw.Buffer) (*BufferLock, error) {
	if s := l.LockBuffer(b); !s.OK() {
		return nil, &BufferLockError{Status: s}
	}
	return &BufferLock{l: l, buf: b}, nil
}

func (b *BufferLock) Unlock() {
	if b == nil || b.buf == nil {
		return
	}
	b.l.UnlockBuffer(b.buf)
	b.buf = nil
}

// Locked reports whether Unlock is still outstanding.
func (b *BufferLock) Locked() bool {
	return b != nil && b.buf != nil
}
